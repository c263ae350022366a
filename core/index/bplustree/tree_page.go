// Package bplustree implements a concurrent B+Tree index on fixed-size pages
// served by the buffer pool. Leaf and internal node layouts are typed views
// over the pinned page buffer; all mutation happens while the caller holds the
// page's write latch.
package bplustree

import (
	"encoding/binary"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// Page layout constants. All header fields are little-endian int32.
const (
	pageTypeInvalid  int32 = 0
	pageTypeLeaf     int32 = 1
	pageTypeInternal int32 = 2

	offsetPageType = 0
	offsetLSN      = 4 // reserved for recovery integration
	offsetSize     = 8
	offsetMaxSize  = 12
	offsetParentID = 16
	offsetPageID   = 20

	internalHeaderSize = 24
	offsetNextPageID   = 24
	leafHeaderSize     = 28

	ridSize     = 8
	childIDSize = 4
)

func getInt32(data []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(data[off : off+4]))
}

func putInt32(data []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(data[off:off+4], uint32(v))
}

// TreePage is the common header view shared by leaf and internal pages.
type TreePage struct {
	data    []byte
	keySize int
}

// View wraps a pinned page buffer in the common header view.
func View(data []byte, keySize int) *TreePage {
	return &TreePage{data: data, keySize: keySize}
}

func (tp *TreePage) IsLeaf() bool { return getInt32(tp.data, offsetPageType) == pageTypeLeaf }
func (tp *TreePage) IsRoot() bool { return tp.ParentPageID() == page.InvalidPageID }

func (tp *TreePage) Size() int          { return int(getInt32(tp.data, offsetSize)) }
func (tp *TreePage) SetSize(size int)   { putInt32(tp.data, offsetSize, int32(size)) }
func (tp *TreePage) IncreaseSize(d int) { tp.SetSize(tp.Size() + d) }

func (tp *TreePage) MaxSize() int        { return int(getInt32(tp.data, offsetMaxSize)) }
func (tp *TreePage) SetMaxSize(size int) { putInt32(tp.data, offsetMaxSize, int32(size)) }

// MinSize is the underflow threshold: half capacity for internal nodes,
// half of the usable capacity for leaves. The root is exempt.
func (tp *TreePage) MinSize() int {
	if tp.IsLeaf() {
		return tp.MaxSize() / 2
	}
	return (tp.MaxSize() + 1) / 2
}

func (tp *TreePage) ParentPageID() page.PageID {
	return page.PageID(getInt32(tp.data, offsetParentID))
}

func (tp *TreePage) SetParentPageID(id page.PageID) {
	putInt32(tp.data, offsetParentID, int32(id))
}

func (tp *TreePage) PageID() page.PageID {
	return page.PageID(getInt32(tp.data, offsetPageID))
}

func (tp *TreePage) SetPageID(id page.PageID) {
	putInt32(tp.data, offsetPageID, int32(id))
}

// AsLeaf reinterprets the page as a leaf view. The page type must be LEAF.
func (tp *TreePage) AsLeaf() *LeafPage {
	return &LeafPage{TreePage: TreePage{data: tp.data, keySize: tp.keySize}}
}

// AsInternal reinterprets the page as an internal view.
func (tp *TreePage) AsInternal() *InternalPage {
	return &InternalPage{TreePage: TreePage{data: tp.data, keySize: tp.keySize}}
}
