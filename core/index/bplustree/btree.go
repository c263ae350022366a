package bplustree

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kitsune-db/kitsunedb/core/storage/buffer"
	"github.com/kitsune-db/kitsunedb/core/storage/page"
	"github.com/kitsune-db/kitsunedb/pkg/logger"
)

var (
	ErrInvalidKeySize  = errors.New("key width does not match index key size")
	ErrCorruptHeader   = errors.New("header page magic mismatch")
	ErrHeaderPageFull  = errors.New("header page cannot hold more index records")
	ErrInvalidMaxSize  = errors.New("leaf and internal max sizes must be at least 3")
	ErrNilComparator   = errors.New("key comparator must be provided")
	ErrKeySizeTooLarge = errors.New("key size leaves no room for entries in a page")
)

type operation int

const (
	opSearch operation = iota
	opInsert
	opDelete
)

// Config tunes an index instance. Zero values derive defaults from the page
// size.
type Config struct {
	// KeySize is the fixed key width in bytes. Defaults to 8.
	KeySize int
	// LeafMaxSize and InternalMaxSize are slot counts.
	LeafMaxSize     int
	InternalMaxSize int
	Logger          *zap.Logger
}

// BPlusTree is a concurrent B+Tree over buffer-pool pages. Unique keys only.
// Readers descend with latch coupling; writers crab, holding write latches
// from the deepest unsafe ancestor down.
type BPlusTree struct {
	name            string
	rootPageID      page.PageID
	bpm             *buffer.BufferPoolManager
	comparator      KeyComparator
	keySize         int
	leafMaxSize     int
	internalMaxSize int

	// rootLatch guards rootPageID. Writers represent it on the
	// transaction's held-latch stack with a nil sentinel.
	rootLatch sync.RWMutex

	logger  *zap.Logger
	metrics *treeMetrics
}

// NewBPlusTree opens (or registers) the named index over the buffer pool,
// bootstrapping the header page on a fresh file and recovering the root page
// id from it otherwise.
func NewBPlusTree(name string, bpm *buffer.BufferPoolManager, comparator KeyComparator, cfg Config) (*BPlusTree, error) {
	if comparator == nil {
		return nil, ErrNilComparator
	}
	if cfg.KeySize == 0 {
		cfg.KeySize = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	pageSize := bpm.PageSize()
	if cfg.LeafMaxSize == 0 {
		cfg.LeafMaxSize = (pageSize - leafHeaderSize) / (cfg.KeySize + ridSize)
	}
	if cfg.InternalMaxSize == 0 {
		cfg.InternalMaxSize = (pageSize - internalHeaderSize) / (cfg.KeySize + childIDSize)
	}
	if cfg.LeafMaxSize < 3 || cfg.InternalMaxSize < 3 {
		return nil, ErrInvalidMaxSize
	}
	if leafHeaderSize+cfg.LeafMaxSize*(cfg.KeySize+ridSize) > pageSize ||
		internalHeaderSize+cfg.InternalMaxSize*(cfg.KeySize+childIDSize) > pageSize {
		return nil, ErrKeySizeTooLarge
	}

	t := &BPlusTree{
		name:            name,
		rootPageID:      page.InvalidPageID,
		bpm:             bpm,
		comparator:      comparator,
		keySize:         cfg.KeySize,
		leafMaxSize:     cfg.LeafMaxSize,
		internalMaxSize: cfg.InternalMaxSize,
		logger:          cfg.Logger,
		metrics:         newTreeMetrics(),
	}
	if err := t.bootstrapHeader(); err != nil {
		return nil, err
	}
	t.logger.Info("opened b+tree index",
		logger.Index(name),
		logger.Root(t.rootPageID),
		zap.Int("leaf_max_size", t.leafMaxSize),
		zap.Int("internal_max_size", t.internalMaxSize))
	return t, nil
}

// bootstrapHeader fetches page 0, creating and stamping it on a fresh file,
// and loads (or registers) this index's root record.
func (t *BPlusTree) bootstrapHeader() error {
	hdrPg, err := t.bpm.FetchPage(page.HeaderPageID)
	fresh := false
	if err != nil {
		hdrPg, err = t.bpm.NewPage()
		if err != nil {
			return fmt.Errorf("bootstrapping header page: %w", err)
		}
		if hdrPg.ID() != page.HeaderPageID {
			t.bpm.UnpinPage(hdrPg.ID(), false)
			return fmt.Errorf("header page allocated at page %d, want %d", hdrPg.ID(), page.HeaderPageID)
		}
		HeaderView(hdrPg.Data()).Init()
		fresh = true
	}
	hdr := HeaderView(hdrPg.Data())
	if !hdr.IsValid() {
		t.bpm.UnpinPage(page.HeaderPageID, false)
		return ErrCorruptHeader
	}
	rootID, ok := hdr.RootID(t.name)
	dirty := fresh
	if !ok {
		if !hdr.InsertRecord(t.name, page.InvalidPageID) {
			t.bpm.UnpinPage(page.HeaderPageID, dirty)
			return ErrHeaderPageFull
		}
		rootID = page.InvalidPageID
		dirty = true
	}
	t.rootPageID = rootID
	return t.bpm.UnpinPage(page.HeaderPageID, dirty)
}

// updateRootPageID mirrors the in-memory root id to the header page. Callers
// hold the root latch in write mode.
func (t *BPlusTree) updateRootPageID() error {
	hdrPg, err := t.bpm.FetchPage(page.HeaderPageID)
	if err != nil {
		return fmt.Errorf("updating root record: %w", err)
	}
	HeaderView(hdrPg.Data()).UpdateRecord(t.name, t.rootPageID)
	return t.bpm.UnpinPage(page.HeaderPageID, true)
}

// IsEmpty reports whether the tree holds no keys.
func (t *BPlusTree) IsEmpty() bool {
	t.rootLatch.RLock()
	defer t.rootLatch.RUnlock()
	return t.rootPageID == page.InvalidPageID
}

// RootPageID returns the current root page id.
func (t *BPlusTree) RootPageID() page.PageID {
	t.rootLatch.RLock()
	defer t.rootLatch.RUnlock()
	return t.rootPageID
}

// releaseAllAncestors unwinds the transaction's held-latch stack front to
// back: the nil sentinel releases the root latch, every other entry is
// unlatched and unpinned.
func (t *BPlusTree) releaseAllAncestors(txn *Transaction) {
	for _, pg := range txn.PageSet() {
		if pg == nil {
			t.rootLatch.Unlock()
			continue
		}
		id := pg.ID()
		pg.WUnlatch()
		t.bpm.UnpinPage(id, false)
	}
	txn.ClearPageSet()
}

// isSafe reports whether a node absorbs the operation without propagating a
// structural change to its parent.
func (t *BPlusTree) isSafe(node *TreePage, op operation) bool {
	if op == opInsert {
		if node.IsLeaf() {
			return node.Size() < t.leafMaxSize-1
		}
		return node.Size() < t.internalMaxSize
	}
	return node.Size() > node.MinSize()
}

// findLeaf descends to the leaf responsible for key, returning it pinned and
// latched (read for SEARCH, write otherwise). The caller must already hold
// the root latch in the matching mode; write operations must have pushed the
// nil sentinel. On error everything acquired, including the root latch, is
// released.
func (t *BPlusTree) findLeaf(key []byte, op operation, txn *Transaction, leftMost, rightMost bool) (*page.Page, error) {
	pg, err := t.bpm.FetchPage(t.rootPageID)
	if err != nil {
		if op == opSearch {
			t.rootLatch.RUnlock()
		} else {
			t.releaseAllAncestors(txn)
		}
		return nil, err
	}
	node := View(pg.Data(), t.keySize)
	if op == opSearch {
		pg.RLatch()
		t.rootLatch.RUnlock()
	} else {
		pg.WLatch()
		// Root-level safety: a delete that cannot shrink the root and an
		// insert that cannot split it release the root latch at once.
		switch {
		case op == opDelete && node.Size() > 2:
			t.releaseAllAncestors(txn)
		case op == opInsert && t.isSafe(node, opInsert):
			t.releaseAllAncestors(txn)
		}
	}

	for !node.IsLeaf() {
		internal := node.AsInternal()
		var childID page.PageID
		switch {
		case leftMost:
			childID = internal.ValueAt(0)
		case rightMost:
			childID = internal.ValueAt(internal.Size() - 1)
		default:
			childID = internal.Lookup(key, t.comparator)
		}

		childPg, err := t.bpm.FetchPage(childID)
		if err != nil {
			if op == opSearch {
				pg.RUnlatch()
				t.bpm.UnpinPage(pg.ID(), false)
			} else {
				pg.WUnlatch()
				t.bpm.UnpinPage(pg.ID(), false)
				t.releaseAllAncestors(txn)
			}
			return nil, err
		}
		child := View(childPg.Data(), t.keySize)

		switch op {
		case opSearch:
			childPg.RLatch()
			pg.RUnlatch()
			t.bpm.UnpinPage(pg.ID(), false)
		default:
			childPg.WLatch()
			txn.AddIntoPageSet(pg)
			if t.isSafe(child, op) {
				t.releaseAllAncestors(txn)
			}
		}
		pg, node = childPg, child
	}
	return pg, nil
}

// GetValue performs a point lookup.
func (t *BPlusTree) GetValue(key []byte) (page.RID, bool, error) {
	if len(key) != t.keySize {
		return page.RID{}, false, ErrInvalidKeySize
	}
	t.metrics.search()
	t.rootLatch.RLock()
	if t.rootPageID == page.InvalidPageID {
		t.rootLatch.RUnlock()
		return page.RID{}, false, nil
	}
	leafPg, err := t.findLeaf(key, opSearch, nil, false, false)
	if err != nil {
		return page.RID{}, false, err
	}
	leaf := LeafView(leafPg.Data(), t.keySize)
	rid, found := leaf.Lookup(key, t.comparator)
	leafPg.RUnlatch()
	t.bpm.UnpinPage(leafPg.ID(), false)
	return rid, found, nil
}

// Insert adds a unique key. It returns false without error when the key is
// already present.
func (t *BPlusTree) Insert(key []byte, rid page.RID) (bool, error) {
	if len(key) != t.keySize {
		return false, ErrInvalidKeySize
	}
	t.metrics.insert()
	txn := NewTransaction()
	t.rootLatch.Lock()
	txn.AddIntoPageSet(nil)
	if t.rootPageID == page.InvalidPageID {
		err := t.startNewTree(key, rid)
		t.releaseAllAncestors(txn)
		return err == nil, err
	}
	return t.insertToLeaf(key, rid, txn)
}

// startNewTree allocates a single leaf root holding the first pair.
func (t *BPlusTree) startNewTree(key []byte, rid page.RID) error {
	pg, err := t.bpm.NewPage()
	if err != nil {
		return err
	}
	root := LeafView(pg.Data(), t.keySize)
	root.Init(pg.ID(), page.InvalidPageID, t.leafMaxSize)
	root.Insert(key, rid, t.comparator)
	t.rootPageID = pg.ID()
	if err := t.updateRootPageID(); err != nil {
		t.bpm.UnpinPage(pg.ID(), true)
		return err
	}
	return t.bpm.UnpinPage(pg.ID(), true)
}

func (t *BPlusTree) insertToLeaf(key []byte, rid page.RID, txn *Transaction) (bool, error) {
	leafPg, err := t.findLeaf(key, opInsert, txn, false, false)
	if err != nil {
		return false, err
	}
	leaf := LeafView(leafPg.Data(), t.keySize)

	if _, exists := leaf.Lookup(key, t.comparator); exists {
		t.releaseAllAncestors(txn)
		leafPg.WUnlatch()
		t.bpm.UnpinPage(leafPg.ID(), false)
		return false, nil
	}

	leaf.Insert(key, rid, t.comparator)

	if leaf.Size() < t.leafMaxSize {
		t.releaseAllAncestors(txn)
		leafPg.WUnlatch()
		t.bpm.UnpinPage(leafPg.ID(), true)
		return true, nil
	}

	// Full: split and push the new leaf's low key up.
	newLeafPg, err := t.splitLeaf(leaf)
	if err != nil {
		t.releaseAllAncestors(txn)
		leafPg.WUnlatch()
		t.bpm.UnpinPage(leafPg.ID(), true)
		return false, err
	}
	newLeaf := LeafView(newLeafPg.Data(), t.keySize)
	upKey := make([]byte, t.keySize)
	copy(upKey, newLeaf.KeyAt(0))

	err = t.insertIntoParent(leafPg, upKey, newLeafPg, txn)
	leafPg.WUnlatch()
	t.bpm.UnpinPage(leafPg.ID(), true)
	t.bpm.UnpinPage(newLeafPg.ID(), true)
	return err == nil, err
}

// splitLeaf allocates a sibling and moves the trailing half into it. The
// leaf chain splice happens inside MoveHalfTo.
func (t *BPlusTree) splitLeaf(leaf *LeafPage) (*page.Page, error) {
	pg, err := t.bpm.NewPage()
	if err != nil {
		return nil, err
	}
	sibling := LeafView(pg.Data(), t.keySize)
	sibling.Init(pg.ID(), leaf.ParentPageID(), t.leafMaxSize)
	leaf.MoveHalfTo(sibling)
	t.metrics.split()
	return pg, nil
}

// insertIntoParent links a freshly split sibling under the parent of oldPg,
// growing a new root or recursively splitting the parent as needed. It
// releases the transaction's ancestor stack on every path, including errors.
func (t *BPlusTree) insertIntoParent(oldPg *page.Page, upKey []byte, newPg *page.Page, txn *Transaction) error {
	oldNode := View(oldPg.Data(), t.keySize)
	newNode := View(newPg.Data(), t.keySize)

	if oldNode.IsRoot() {
		rootPg, err := t.bpm.NewPage()
		if err != nil {
			t.releaseAllAncestors(txn)
			return err
		}
		root := InternalView(rootPg.Data(), t.keySize)
		root.Init(rootPg.ID(), page.InvalidPageID, t.internalMaxSize)
		root.PopulateNewRoot(oldNode.PageID(), upKey, newNode.PageID())
		oldNode.SetParentPageID(rootPg.ID())
		newNode.SetParentPageID(rootPg.ID())
		t.rootPageID = rootPg.ID()
		err = t.updateRootPageID()
		t.bpm.UnpinPage(rootPg.ID(), true)
		t.releaseAllAncestors(txn)
		return err
	}

	parentID := oldNode.ParentPageID()
	parentPg, err := t.bpm.FetchPage(parentID)
	if err != nil {
		t.releaseAllAncestors(txn)
		return err
	}
	parent := InternalView(parentPg.Data(), t.keySize)
	newNode.SetParentPageID(parentID)

	if parent.Size() < t.internalMaxSize {
		parent.InsertNodeAfter(oldNode.PageID(), upKey, newNode.PageID())
		t.releaseAllAncestors(txn)
		return t.bpm.UnpinPage(parentPg.ID(), true)
	}

	// The parent is full. Apply the insert to an oversized scratch copy,
	// split the scratch, then write the surviving first half back.
	pairSize := t.keySize + childIDSize
	used := internalHeaderSize + parent.Size()*pairSize
	scratch := make([]byte, internalHeaderSize+(parent.Size()+1)*pairSize)
	copy(scratch, parentPg.Data()[:used])
	scratchNode := InternalView(scratch, t.keySize)
	scratchNode.SetMaxSize(t.internalMaxSize + 1)
	scratchNode.InsertNodeAfter(oldNode.PageID(), upKey, newNode.PageID())

	siblingPg, err := t.bpm.NewPage()
	if err != nil {
		t.bpm.UnpinPage(parentPg.ID(), false)
		t.releaseAllAncestors(txn)
		return err
	}
	sibling := InternalView(siblingPg.Data(), t.keySize)
	sibling.Init(siblingPg.ID(), parent.ParentPageID(), t.internalMaxSize)
	if err := scratchNode.MoveHalfTo(sibling, t.bpm); err != nil {
		t.bpm.UnpinPage(parentPg.ID(), true)
		t.bpm.UnpinPage(siblingPg.ID(), true)
		t.releaseAllAncestors(txn)
		return err
	}
	copy(parentPg.Data()[:internalHeaderSize+scratchNode.Size()*pairSize],
		scratch[:internalHeaderSize+scratchNode.Size()*pairSize])
	parent.SetMaxSize(t.internalMaxSize)
	t.metrics.split()

	siblingKey := make([]byte, t.keySize)
	copy(siblingKey, sibling.KeyAt(0))
	err = t.insertIntoParent(parentPg, siblingKey, siblingPg, txn)
	t.bpm.UnpinPage(parentPg.ID(), true)
	t.bpm.UnpinPage(siblingPg.ID(), true)
	return err
}

// Remove deletes key's pair. Removing an absent key is a no-op.
func (t *BPlusTree) Remove(key []byte) error {
	if len(key) != t.keySize {
		return ErrInvalidKeySize
	}
	t.metrics.remove()
	txn := NewTransaction()
	t.rootLatch.Lock()
	txn.AddIntoPageSet(nil)
	if t.rootPageID == page.InvalidPageID {
		t.releaseAllAncestors(txn)
		return nil
	}

	leafPg, err := t.findLeaf(key, opDelete, txn, false, false)
	if err != nil {
		return err
	}
	leaf := LeafView(leafPg.Data(), t.keySize)
	wasFirst := leaf.Size() > 0 && t.comparator(leaf.KeyAt(0), key) == 0

	before := leaf.Size()
	if leaf.RemoveRecord(key, t.comparator) == before {
		t.releaseAllAncestors(txn)
		leafPg.WUnlatch()
		t.bpm.UnpinPage(leafPg.ID(), false)
		return nil
	}

	// Deleting slot 0 invalidates the parent's separator for this leaf when
	// the leaf is not the parent's first child. Only refresh it while the
	// ancestor stack is still held: that is exactly when the parent is
	// write-latched. A stale separator on the safe path stays a valid lower
	// bound for routing.
	if !leaf.IsRoot() && wasFirst && leaf.Size() > 0 && len(txn.PageSet()) > 0 {
		parentPg, err := t.bpm.FetchPage(leaf.ParentPageID())
		if err != nil {
			t.releaseAllAncestors(txn)
			leafPg.WUnlatch()
			t.bpm.UnpinPage(leafPg.ID(), true)
			return err
		}
		parent := InternalView(parentPg.Data(), t.keySize)
		if idx := parent.ValueIndex(leafPg.ID()); idx > 0 {
			parent.SetKeyAt(idx, leaf.KeyAt(0))
		}
		t.bpm.UnpinPage(parentPg.ID(), true)
	}

	deleted, err := t.coalesceOrRedistribute(leafPg, txn)
	if err != nil {
		leafPg.WUnlatch()
		t.bpm.UnpinPage(leafPg.ID(), true)
		return err
	}
	if deleted {
		txn.AddIntoDeletedPageSet(leafPg.ID())
	}

	leafPg.WUnlatch()
	t.bpm.UnpinPage(leafPg.ID(), true)

	for id := range txn.DeletedPageSet() {
		if err := t.bpm.DeletePage(id); err != nil {
			t.logger.Warn("failed to free emptied page", logger.Page(id), zap.Error(err))
		}
	}
	txn.ClearDeletedPageSet()
	return nil
}

// coalesceOrRedistribute restores the size invariant of an underflowing node,
// reporting whether the node's page was emptied and must be freed. Errors
// release the ancestor stack before returning.
func (t *BPlusTree) coalesceOrRedistribute(pg *page.Page, txn *Transaction) (bool, error) {
	node := View(pg.Data(), t.keySize)

	if node.IsRoot() {
		// A shrinking internal root hands the tree to its only child; an
		// emptied leaf root leaves the tree empty.
		if !node.IsLeaf() && node.Size() <= 1 {
			childID := node.AsInternal().ValueAt(0)
			childPg, err := t.bpm.FetchPage(childID)
			if err != nil {
				t.releaseAllAncestors(txn)
				return false, err
			}
			View(childPg.Data(), t.keySize).SetParentPageID(page.InvalidPageID)
			t.rootPageID = childID
			err = t.updateRootPageID()
			t.bpm.UnpinPage(childID, true)
			t.releaseAllAncestors(txn)
			return err == nil, err
		}
		if node.IsLeaf() && node.Size() == 0 {
			t.rootPageID = page.InvalidPageID
			err := t.updateRootPageID()
			t.releaseAllAncestors(txn)
			return err == nil, err
		}
		t.releaseAllAncestors(txn)
		return false, nil
	}

	if node.Size() >= node.MinSize() {
		t.releaseAllAncestors(txn)
		return false, nil
	}

	parentPg, err := t.bpm.FetchPage(node.ParentPageID())
	if err != nil {
		t.releaseAllAncestors(txn)
		return false, err
	}
	parent := InternalView(parentPg.Data(), t.keySize)
	idx := parent.ValueIndex(pg.ID())

	if idx > 0 {
		// Prefer the left sibling: it absorbs this node on coalesce.
		siblingPg, err := t.bpm.FetchPage(parent.ValueAt(idx - 1))
		if err != nil {
			t.bpm.UnpinPage(parentPg.ID(), false)
			t.releaseAllAncestors(txn)
			return false, err
		}
		siblingPg.WLatch()
		sibling := View(siblingPg.Data(), t.keySize)

		if sibling.Size() > sibling.MinSize() {
			err := t.redistribute(siblingPg, pg, parent, idx, true)
			t.releaseAllAncestors(txn)
			t.bpm.UnpinPage(parentPg.ID(), true)
			siblingPg.WUnlatch()
			t.bpm.UnpinPage(siblingPg.ID(), true)
			return false, err
		}

		parentDeleted, err := t.coalesce(siblingPg, pg, parentPg, idx, txn)
		if err != nil {
			t.bpm.UnpinPage(parentPg.ID(), true)
			siblingPg.WUnlatch()
			t.bpm.UnpinPage(siblingPg.ID(), true)
			return false, err
		}
		if parentDeleted {
			txn.AddIntoDeletedPageSet(parentPg.ID())
		}
		t.bpm.UnpinPage(parentPg.ID(), true)
		siblingPg.WUnlatch()
		t.bpm.UnpinPage(siblingPg.ID(), true)
		return true, nil
	}

	// Leftmost child: work with the right sibling, which merges into this
	// node on coalesce.
	siblingPg, err := t.bpm.FetchPage(parent.ValueAt(idx + 1))
	if err != nil {
		t.bpm.UnpinPage(parentPg.ID(), false)
		t.releaseAllAncestors(txn)
		return false, err
	}
	siblingPg.WLatch()
	sibling := View(siblingPg.Data(), t.keySize)

	if sibling.Size() > sibling.MinSize() {
		err := t.redistribute(siblingPg, pg, parent, idx+1, false)
		t.releaseAllAncestors(txn)
		t.bpm.UnpinPage(parentPg.ID(), true)
		siblingPg.WUnlatch()
		t.bpm.UnpinPage(siblingPg.ID(), true)
		return false, err
	}

	txn.AddIntoDeletedPageSet(siblingPg.ID())
	parentDeleted, err := t.coalesce(pg, siblingPg, parentPg, idx+1, txn)
	if err != nil {
		t.bpm.UnpinPage(parentPg.ID(), true)
		siblingPg.WUnlatch()
		t.bpm.UnpinPage(siblingPg.ID(), true)
		return false, err
	}
	if parentDeleted {
		txn.AddIntoDeletedPageSet(parentPg.ID())
	}
	t.bpm.UnpinPage(parentPg.ID(), true)
	siblingPg.WUnlatch()
	t.bpm.UnpinPage(siblingPg.ID(), true)
	return false, nil
}

// coalesce merges nodePg into neighborPg (its left neighbor), removes the
// separator slot from the parent, and recurses on the parent's own
// underflow. Returns whether the parent's page was emptied.
func (t *BPlusTree) coalesce(neighborPg, nodePg, parentPg *page.Page, index int, txn *Transaction) (bool, error) {
	parent := InternalView(parentPg.Data(), t.keySize)
	middleKey := make([]byte, t.keySize)
	copy(middleKey, parent.KeyAt(index))

	node := View(nodePg.Data(), t.keySize)
	if node.IsLeaf() {
		node.AsLeaf().MoveAllTo(LeafView(neighborPg.Data(), t.keySize))
	} else {
		if err := node.AsInternal().MoveAllTo(InternalView(neighborPg.Data(), t.keySize), middleKey, t.bpm); err != nil {
			t.releaseAllAncestors(txn)
			return false, err
		}
	}
	parent.Remove(index)
	t.metrics.coalesce()

	return t.coalesceOrRedistribute(parentPg, txn)
}

// redistribute moves one entry from the surplus sibling into the
// underflowing node and refreshes the parent separator. index addresses the
// parent slot of the node when the sibling is on the left, and of the
// sibling when it is on the right.
func (t *BPlusTree) redistribute(neighborPg, nodePg *page.Page, parent *InternalPage, index int, fromPrev bool) error {
	t.metrics.redistribute()
	node := View(nodePg.Data(), t.keySize)
	if node.IsLeaf() {
		nodeLeaf := node.AsLeaf()
		neighborLeaf := LeafView(neighborPg.Data(), t.keySize)
		if fromPrev {
			neighborLeaf.MoveLastToFrontOf(nodeLeaf)
			parent.SetKeyAt(index, nodeLeaf.KeyAt(0))
		} else {
			neighborLeaf.MoveFirstToEndOf(nodeLeaf)
			parent.SetKeyAt(index, neighborLeaf.KeyAt(0))
		}
		return nil
	}
	nodeInternal := node.AsInternal()
	neighborInternal := InternalView(neighborPg.Data(), t.keySize)
	if fromPrev {
		if err := neighborInternal.MoveLastToFrontOf(nodeInternal, parent.KeyAt(index), t.bpm); err != nil {
			return err
		}
		parent.SetKeyAt(index, nodeInternal.KeyAt(0))
		return nil
	}
	if err := neighborInternal.MoveFirstToEndOf(nodeInternal, parent.KeyAt(index), t.bpm); err != nil {
		return err
	}
	parent.SetKeyAt(index, neighborInternal.KeyAt(0))
	return nil
}
