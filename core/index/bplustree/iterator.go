package bplustree

import (
	"github.com/kitsune-db/kitsunedb/core/storage/buffer"
	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// IndexIterator walks leaf entries in ascending key order. It keeps the
// current leaf pinned and read-latched; advancing past a leaf hands off to
// the next one atomically. The end of the range is represented by a nil page.
type IndexIterator struct {
	bpm     *buffer.BufferPoolManager
	page    *page.Page
	leaf    *LeafPage
	index   int
	keySize int
}

// IsEnd reports whether the iterator is exhausted.
func (it *IndexIterator) IsEnd() bool { return it.page == nil }

// Key returns a copy of the current key.
func (it *IndexIterator) Key() []byte {
	key := make([]byte, it.keySize)
	copy(key, it.leaf.KeyAt(it.index))
	return key
}

// Value returns the current record id.
func (it *IndexIterator) Value() page.RID { return it.leaf.ValueAt(it.index) }

// Next advances to the following entry, crossing leaf boundaries as needed.
func (it *IndexIterator) Next() error {
	if it.page == nil {
		return nil
	}
	it.index++
	return it.normalize()
}

// Close releases the current leaf early, for callers abandoning the scan.
func (it *IndexIterator) Close() {
	it.releaseCurrent()
}

// normalize skips past exhausted leaves until the iterator points at a valid
// entry or the end.
func (it *IndexIterator) normalize() error {
	for it.page != nil && it.index >= it.leaf.Size() {
		if err := it.advanceLeaf(); err != nil {
			return err
		}
	}
	return nil
}

// advanceLeaf hands off from the current leaf to its successor: fetch and
// read-latch the next leaf, then release and unpin the old one.
func (it *IndexIterator) advanceLeaf() error {
	nextID := it.leaf.NextPageID()
	if !nextID.IsValid() {
		it.releaseCurrent()
		return nil
	}
	nextPg, err := it.bpm.FetchPage(nextID)
	if err != nil {
		it.releaseCurrent()
		return err
	}
	nextPg.RLatch()
	it.page.RUnlatch()
	it.bpm.UnpinPage(it.page.ID(), false)
	it.page = nextPg
	it.leaf = LeafView(nextPg.Data(), it.keySize)
	it.index = 0
	return nil
}

func (it *IndexIterator) releaseCurrent() {
	if it.page == nil {
		return
	}
	it.page.RUnlatch()
	it.bpm.UnpinPage(it.page.ID(), false)
	it.page = nil
	it.leaf = nil
}

// Begin positions an iterator at the smallest key.
func (t *BPlusTree) Begin() (*IndexIterator, error) {
	t.rootLatch.RLock()
	if t.rootPageID == page.InvalidPageID {
		t.rootLatch.RUnlock()
		return &IndexIterator{}, nil
	}
	pg, err := t.findLeaf(nil, opSearch, nil, true, false)
	if err != nil {
		return nil, err
	}
	it := &IndexIterator{bpm: t.bpm, page: pg, leaf: LeafView(pg.Data(), t.keySize), keySize: t.keySize}
	if err := it.normalize(); err != nil {
		return nil, err
	}
	return it, nil
}

// BeginAt positions an iterator at key, or at the next larger key when key
// is absent.
func (t *BPlusTree) BeginAt(key []byte) (*IndexIterator, error) {
	if len(key) != t.keySize {
		return nil, ErrInvalidKeySize
	}
	t.rootLatch.RLock()
	if t.rootPageID == page.InvalidPageID {
		t.rootLatch.RUnlock()
		return &IndexIterator{}, nil
	}
	pg, err := t.findLeaf(key, opSearch, nil, false, false)
	if err != nil {
		return nil, err
	}
	leaf := LeafView(pg.Data(), t.keySize)
	idx := leaf.KeyIndex(key, t.comparator)
	if idx < 0 || t.comparator(leaf.KeyAt(idx), key) != 0 {
		idx++ // insertion point
	}
	it := &IndexIterator{bpm: t.bpm, page: pg, leaf: leaf, index: idx, keySize: t.keySize}
	if err := it.normalize(); err != nil {
		return nil, err
	}
	return it, nil
}

// End returns the iterator representing the end of the range.
func (t *BPlusTree) End() *IndexIterator { return &IndexIterator{} }
