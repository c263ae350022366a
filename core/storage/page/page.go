// Package page defines the fixed-size page unit shared by the disk manager,
// the buffer pool, and the B+Tree index.
package page

import "sync"

const (
	// DefaultPageSize is the canonical page size in bytes.
	DefaultPageSize = 4096

	// InvalidPageID marks an unallocated or absent page reference.
	InvalidPageID PageID = -1
	// HeaderPageID is the fixed location of the index header page.
	HeaderPageID PageID = 0
)

// PageID identifies a page within the database file. It is persisted as a
// little-endian int32 inside page payloads.
type PageID int32

// IsValid reports whether the id refers to an allocated page.
func (id PageID) IsValid() bool { return id != InvalidPageID }

// RID is a record identifier: the heap page holding a tuple and its slot.
// It is the value type stored in B+Tree leaves.
type RID struct {
	PageID PageID
	Slot   int32
}

// Page is an in-memory frame holding one disk page. The buffer pool owns all
// Page instances; callers borrow them between a Fetch/New and the matching
// Unpin.
type Page struct {
	id       PageID
	data     []byte
	pinCount uint32
	isDirty  bool

	// latch protects the page contents. It is the unit of physical
	// concurrency control for the index structures layered on top.
	latch sync.RWMutex
}

// New creates a zeroed page frame of the given size.
func New(id PageID, size int) *Page {
	return &Page{
		id:   id,
		data: make([]byte, size),
	}
}

// Reset clears the frame for reuse by the buffer pool.
func (p *Page) Reset() {
	p.id = InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	for i := range p.data {
		p.data[i] = 0
	}
}

func (p *Page) Data() []byte        { return p.data }
func (p *Page) ID() PageID          { return p.id }
func (p *Page) SetID(id PageID)     { p.id = id }
func (p *Page) IsDirty() bool       { return p.isDirty }
func (p *Page) SetDirty(dirty bool) { p.isDirty = dirty }

func (p *Page) Pin() { p.pinCount++ }
func (p *Page) Unpin() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}
func (p *Page) PinCount() uint32            { return p.pinCount }
func (p *Page) SetPinCount(pinCount uint32) { p.pinCount = pinCount }

// RLatch acquires the page latch in shared mode.
func (p *Page) RLatch() { p.latch.RLock() }

// RUnlatch releases a shared latch.
func (p *Page) RUnlatch() { p.latch.RUnlock() }

// WLatch acquires the page latch in exclusive mode.
func (p *Page) WLatch() { p.latch.Lock() }

// WUnlatch releases an exclusive latch.
func (p *Page) WUnlatch() { p.latch.Unlock() }
