package bplustree

import (
	"github.com/google/uuid"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// Transaction is the per-operation context for structural modifications: the
// stack of write-latched ancestor pages (a nil entry is the sentinel for the
// tree-level root latch) and the set of pages emptied during the operation,
// freed only after every latch is released.
type Transaction struct {
	id      uuid.UUID
	pages   []*page.Page
	deleted map[page.PageID]struct{}
}

// NewTransaction creates an operation context with a fresh id.
func NewTransaction() *Transaction {
	return &Transaction{
		id:      uuid.New(),
		deleted: make(map[page.PageID]struct{}),
	}
}

// ID returns the operation's correlation id.
func (t *Transaction) ID() uuid.UUID { return t.id }

// AddIntoPageSet pushes a latched ancestor. Pass nil for the root latch
// sentinel.
func (t *Transaction) AddIntoPageSet(p *page.Page) {
	t.pages = append(t.pages, p)
}

// PageSet returns the held ancestors in acquisition (top-down) order.
func (t *Transaction) PageSet() []*page.Page { return t.pages }

// ClearPageSet empties the held-latch stack after release.
func (t *Transaction) ClearPageSet() { t.pages = t.pages[:0] }

// AddIntoDeletedPageSet defers freeing of an emptied page.
func (t *Transaction) AddIntoDeletedPageSet(id page.PageID) {
	t.deleted[id] = struct{}{}
}

// DeletedPageSet returns the pages awaiting deletion.
func (t *Transaction) DeletedPageSet() map[page.PageID]struct{} { return t.deleted }

// ClearDeletedPageSet empties the deleted-page set after the pages are freed.
func (t *Transaction) ClearDeletedPageSet() {
	for id := range t.deleted {
		delete(t.deleted, id)
	}
}
