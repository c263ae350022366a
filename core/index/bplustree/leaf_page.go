package bplustree

import (
	"encoding/binary"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// LeafPage is the in-place view of a leaf node: the common header, the id of
// the next leaf in key order, and a sorted array of (key, RID) pairs.
type LeafPage struct {
	TreePage
}

// LeafView wraps a pinned page buffer in the leaf view.
func LeafView(data []byte, keySize int) *LeafPage {
	return &LeafPage{TreePage: TreePage{data: data, keySize: keySize}}
}

// Init sets up a freshly allocated page as an empty leaf.
func (lp *LeafPage) Init(pageID, parentID page.PageID, maxSize int) {
	putInt32(lp.data, offsetPageType, pageTypeLeaf)
	lp.SetSize(0)
	lp.SetPageID(pageID)
	lp.SetParentPageID(parentID)
	lp.SetNextPageID(page.InvalidPageID)
	lp.SetMaxSize(maxSize)
}

func (lp *LeafPage) NextPageID() page.PageID {
	return page.PageID(getInt32(lp.data, offsetNextPageID))
}

func (lp *LeafPage) SetNextPageID(id page.PageID) {
	putInt32(lp.data, offsetNextPageID, int32(id))
}

func (lp *LeafPage) pairSize() int { return lp.keySize + ridSize }

func (lp *LeafPage) keyOffset(index int) int {
	return leafHeaderSize + index*lp.pairSize()
}

// KeyAt returns the key bytes at the given slot. The slice aliases the page
// buffer; callers copy before retaining it past the latch.
func (lp *LeafPage) KeyAt(index int) []byte {
	off := lp.keyOffset(index)
	return lp.data[off : off+lp.keySize]
}

// ValueAt returns the record id at the given slot.
func (lp *LeafPage) ValueAt(index int) page.RID {
	off := lp.keyOffset(index) + lp.keySize
	return page.RID{
		PageID: page.PageID(int32(binary.LittleEndian.Uint32(lp.data[off : off+4]))),
		Slot:   int32(binary.LittleEndian.Uint32(lp.data[off+4 : off+8])),
	}
}

func (lp *LeafPage) setPairAt(index int, key []byte, rid page.RID) {
	off := lp.keyOffset(index)
	copy(lp.data[off:off+lp.keySize], key)
	binary.LittleEndian.PutUint32(lp.data[off+lp.keySize:], uint32(rid.PageID))
	binary.LittleEndian.PutUint32(lp.data[off+lp.keySize+4:], uint32(rid.Slot))
}

// shiftRight opens a gap at index by moving pairs [index, size) one slot right.
func (lp *LeafPage) shiftRight(index int) {
	start := lp.keyOffset(index)
	end := lp.keyOffset(lp.Size())
	copy(lp.data[start+lp.pairSize():end+lp.pairSize()], lp.data[start:end])
}

// shiftLeft closes the gap at index by moving pairs (index, size) one slot left.
func (lp *LeafPage) shiftLeft(index int) {
	start := lp.keyOffset(index + 1)
	end := lp.keyOffset(lp.Size())
	copy(lp.data[lp.keyOffset(index):], lp.data[start:end])
}

// KeyIndex binary-searches for the largest index whose key is <= key,
// returning -1 when every key is greater.
func (lp *LeafPage) KeyIndex(key []byte, cmp KeyComparator) int {
	size := lp.Size()
	if size == 0 {
		return -1
	}
	left, right := 0, size-1
	for left < right {
		mid := (right-left)/2 + left
		if cmp(lp.KeyAt(mid), key) > 0 {
			right = mid - 1
		} else {
			left = mid + 1
		}
	}
	if cmp(lp.KeyAt(left), key) > 0 {
		return left - 1
	}
	return left
}

// Lookup returns the RID stored under key.
func (lp *LeafPage) Lookup(key []byte, cmp KeyComparator) (page.RID, bool) {
	idx := lp.KeyIndex(key, cmp)
	if idx >= 0 && cmp(lp.KeyAt(idx), key) == 0 {
		return lp.ValueAt(idx), true
	}
	return page.RID{}, false
}

// Insert places (key, rid) at its sorted position and returns the new size.
// The tree rejects duplicate keys before calling this.
func (lp *LeafPage) Insert(key []byte, rid page.RID, cmp KeyComparator) int {
	idx := lp.KeyIndex(key, cmp) + 1
	lp.shiftRight(idx)
	lp.setPairAt(idx, key, rid)
	lp.IncreaseSize(1)
	return lp.Size()
}

// RemoveRecord deletes key's pair if present and returns the new size.
func (lp *LeafPage) RemoveRecord(key []byte, cmp KeyComparator) int {
	idx := lp.KeyIndex(key, cmp)
	if idx < 0 || cmp(lp.KeyAt(idx), key) != 0 {
		return lp.Size()
	}
	lp.shiftLeft(idx)
	lp.IncreaseSize(-1)
	return lp.Size()
}

// MoveHalfTo transfers the trailing half of a full leaf to an empty recipient
// and splices the recipient into the leaf chain.
func (lp *LeafPage) MoveHalfTo(recipient *LeafPage) {
	size := lp.Size()
	splitIdx := (lp.MaxSize() + 1) / 2
	moved := size - splitIdx
	copy(recipient.data[recipient.keyOffset(0):], lp.data[lp.keyOffset(splitIdx):lp.keyOffset(size)])
	recipient.SetSize(moved)
	lp.SetSize(splitIdx)
	recipient.SetNextPageID(lp.NextPageID())
	lp.SetNextPageID(recipient.PageID())
}

// MoveAllTo appends every pair to the recipient (the left sibling during
// coalesce) and routes the leaf chain around the emptied page.
func (lp *LeafPage) MoveAllTo(recipient *LeafPage) {
	size := lp.Size()
	copy(recipient.data[recipient.keyOffset(recipient.Size()):], lp.data[lp.keyOffset(0):lp.keyOffset(size)])
	recipient.IncreaseSize(size)
	recipient.SetNextPageID(lp.NextPageID())
	lp.SetSize(0)
}

// MoveFirstToEndOf shifts this page's first pair onto the recipient's tail.
func (lp *LeafPage) MoveFirstToEndOf(recipient *LeafPage) {
	key := make([]byte, lp.keySize)
	copy(key, lp.KeyAt(0))
	rid := lp.ValueAt(0)
	lp.shiftLeft(0)
	lp.IncreaseSize(-1)
	recipient.setPairAt(recipient.Size(), key, rid)
	recipient.IncreaseSize(1)
}

// MoveLastToFrontOf shifts this page's last pair onto the recipient's head.
func (lp *LeafPage) MoveLastToFrontOf(recipient *LeafPage) {
	last := lp.Size() - 1
	key := make([]byte, lp.keySize)
	copy(key, lp.KeyAt(last))
	rid := lp.ValueAt(last)
	lp.IncreaseSize(-1)
	recipient.shiftRight(0)
	recipient.setPairAt(0, key, rid)
	recipient.IncreaseSize(1)
}
