package bplustree

import (
	"encoding/binary"
	"fmt"

	"github.com/kitsune-db/kitsunedb/core/storage/buffer"
	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// InternalPage is the in-place view of an internal node: the common header
// and a sorted array of (key, childPageID) pairs. Slot 0 holds a sentinel
// key that is never consulted; child i covers keys in [key[i], key[i+1]).
type InternalPage struct {
	TreePage
}

// InternalView wraps a pinned page buffer in the internal view.
func InternalView(data []byte, keySize int) *InternalPage {
	return &InternalPage{TreePage: TreePage{data: data, keySize: keySize}}
}

// Init sets up a freshly allocated page as an empty internal node.
func (ip *InternalPage) Init(pageID, parentID page.PageID, maxSize int) {
	putInt32(ip.data, offsetPageType, pageTypeInternal)
	ip.SetSize(0)
	ip.SetPageID(pageID)
	ip.SetParentPageID(parentID)
	ip.SetMaxSize(maxSize)
}

func (ip *InternalPage) pairSize() int { return ip.keySize + childIDSize }

func (ip *InternalPage) keyOffset(index int) int {
	return internalHeaderSize + index*ip.pairSize()
}

// KeyAt returns the key bytes at the given slot; slot 0 is the sentinel.
func (ip *InternalPage) KeyAt(index int) []byte {
	off := ip.keyOffset(index)
	return ip.data[off : off+ip.keySize]
}

func (ip *InternalPage) SetKeyAt(index int, key []byte) {
	off := ip.keyOffset(index)
	copy(ip.data[off:off+ip.keySize], key)
}

// ValueAt returns the child page id at the given slot.
func (ip *InternalPage) ValueAt(index int) page.PageID {
	off := ip.keyOffset(index) + ip.keySize
	return page.PageID(int32(binary.LittleEndian.Uint32(ip.data[off : off+4])))
}

func (ip *InternalPage) SetValueAt(index int, child page.PageID) {
	off := ip.keyOffset(index) + ip.keySize
	binary.LittleEndian.PutUint32(ip.data[off:off+4], uint32(child))
}

func (ip *InternalPage) setPairAt(index int, key []byte, child page.PageID) {
	ip.SetKeyAt(index, key)
	ip.SetValueAt(index, child)
}

// ValueIndex returns the slot holding the given child id, or -1.
func (ip *InternalPage) ValueIndex(child page.PageID) int {
	for i := 0; i < ip.Size(); i++ {
		if ip.ValueAt(i) == child {
			return i
		}
	}
	return -1
}

// Lookup returns the child covering key: the child before the first slot in
// [1, size) whose key exceeds key, or the last child when no slot does.
func (ip *InternalPage) Lookup(key []byte, cmp KeyComparator) page.PageID {
	left, right := 1, ip.Size()
	for left < right { // first index with key_at(index) > key
		mid := (right-left)/2 + left
		if cmp(ip.KeyAt(mid), key) > 0 {
			right = mid
		} else {
			left = mid + 1
		}
	}
	return ip.ValueAt(left - 1)
}

// PopulateNewRoot initializes a fresh root holding two children separated by
// key.
func (ip *InternalPage) PopulateNewRoot(left page.PageID, key []byte, right page.PageID) {
	ip.SetValueAt(0, left)
	ip.setPairAt(1, key, right)
	ip.SetSize(2)
}

// InsertNodeAfter places (key, child) immediately after the slot whose value
// is oldChild and returns the new size.
func (ip *InternalPage) InsertNodeAfter(oldChild page.PageID, key []byte, child page.PageID) int {
	idx := ip.ValueIndex(oldChild) + 1
	start := ip.keyOffset(idx)
	end := ip.keyOffset(ip.Size())
	copy(ip.data[start+ip.pairSize():end+ip.pairSize()], ip.data[start:end])
	ip.setPairAt(idx, key, child)
	ip.IncreaseSize(1)
	return ip.Size()
}

// Remove deletes the slot at index, shifting the rest left.
func (ip *InternalPage) Remove(index int) {
	start := ip.keyOffset(index + 1)
	end := ip.keyOffset(ip.Size())
	copy(ip.data[ip.keyOffset(index):], ip.data[start:end])
	ip.IncreaseSize(-1)
}

// RemoveAndReturnOnlyChild empties the node and returns its single child,
// used when the root collapses.
func (ip *InternalPage) RemoveAndReturnOnlyChild() page.PageID {
	child := ip.ValueAt(0)
	ip.SetSize(0)
	return child
}

// copyNFrom appends n raw pairs and reparents each appended child to this
// page.
func (ip *InternalPage) copyNFrom(pairs []byte, n int, pool *buffer.BufferPoolManager) error {
	base := ip.Size()
	copy(ip.data[ip.keyOffset(base):], pairs[:n*ip.pairSize()])
	ip.IncreaseSize(n)
	for i := 0; i < n; i++ {
		if err := ip.reparentChild(ip.ValueAt(base+i), pool); err != nil {
			return err
		}
	}
	return nil
}

func (ip *InternalPage) reparentChild(child page.PageID, pool *buffer.BufferPoolManager) error {
	childPg, err := pool.FetchPage(child)
	if err != nil {
		return fmt.Errorf("reparenting child %d: %w", child, err)
	}
	View(childPg.Data(), ip.keySize).SetParentPageID(ip.PageID())
	return pool.UnpinPage(child, true)
}

// MoveHalfTo transfers the trailing pairs [minSize, size) to an empty
// recipient, reparenting the moved children.
func (ip *InternalPage) MoveHalfTo(recipient *InternalPage, pool *buffer.BufferPoolManager) error {
	start := ip.MinSize()
	moved := ip.Size() - start
	pairs := ip.data[ip.keyOffset(start):ip.keyOffset(ip.Size())]
	ip.SetSize(start)
	return recipient.copyNFrom(pairs, moved, pool)
}

// MoveAllTo writes the inherited separator into the sentinel slot, appends
// every pair to the recipient (the left sibling), and empties this node.
func (ip *InternalPage) MoveAllTo(recipient *InternalPage, middleKey []byte, pool *buffer.BufferPoolManager) error {
	ip.SetKeyAt(0, middleKey)
	size := ip.Size()
	pairs := ip.data[ip.keyOffset(0):ip.keyOffset(size)]
	ip.SetSize(0)
	return recipient.copyNFrom(pairs, size, pool)
}

// MoveFirstToEndOf rotates this node's first child onto the recipient's tail,
// carrying the parent separator down as the appended key.
func (ip *InternalPage) MoveFirstToEndOf(recipient *InternalPage, middleKey []byte, pool *buffer.BufferPoolManager) error {
	child := ip.ValueAt(0)
	ip.Remove(0)
	recipient.setPairAt(recipient.Size(), middleKey, child)
	recipient.IncreaseSize(1)
	return recipient.reparentChild(child, pool)
}

// MoveLastToFrontOf rotates this node's last child onto the recipient's head.
// The parent separator moves into the recipient's slot 1 and the moved key
// lands in slot 0, where the caller reads it back as the new separator.
func (ip *InternalPage) MoveLastToFrontOf(recipient *InternalPage, middleKey []byte, pool *buffer.BufferPoolManager) error {
	recipient.SetKeyAt(0, middleKey)
	last := ip.Size() - 1
	key := make([]byte, ip.keySize)
	copy(key, ip.KeyAt(last))
	child := ip.ValueAt(last)
	ip.IncreaseSize(-1)

	start := recipient.keyOffset(0)
	end := recipient.keyOffset(recipient.Size())
	copy(recipient.data[start+recipient.pairSize():end+recipient.pairSize()], recipient.data[start:end])
	recipient.setPairAt(0, key, child)
	recipient.IncreaseSize(1)
	return recipient.reparentChild(child, pool)
}
