// Package buffer implements the buffer pool: a fixed set of page frames cached
// in memory with LRU-K replacement. All pages returned by NewPage and
// FetchPage are pinned; callers must unpin them when done.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kitsune-db/kitsunedb/core/container/hash"
	"github.com/kitsune-db/kitsunedb/core/storage/disk"
	"github.com/kitsune-db/kitsunedb/core/storage/page"
	"github.com/kitsune-db/kitsunedb/pkg/logger"
)

var (
	ErrBufferPoolFull = errors.New("buffer pool is full and no pages can be evicted")
	ErrPageNotFound   = errors.New("page not found in buffer pool")
	ErrPagePinned     = errors.New("page is pinned")
	ErrPageNotPinned  = errors.New("page pin count is already zero")
)

// BufferPoolManager mediates all page access between the index structures and
// the disk manager. It is internally thread-safe; it does not take part in
// the B+Tree latching protocol.
type BufferPoolManager struct {
	diskManager *disk.Manager
	poolSize    int
	frames      []*page.Page
	pageTable   *hash.ExtendibleHashTable[page.PageID, int]
	replacer    *LRUKReplacer
	freeList    []int
	mu          sync.Mutex
	logger      *zap.Logger
	metrics     *poolMetrics
}

// NewBufferPoolManager creates a pool of poolSize frames over diskManager,
// with an LRU-K replacer of the given k.
func NewBufferPoolManager(poolSize int, replacerK int, diskManager *disk.Manager, logger *zap.Logger) *BufferPoolManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	bucketSize := poolSize / 2
	if bucketSize < 4 {
		bucketSize = 4
	}
	bpm := &BufferPoolManager{
		diskManager: diskManager,
		poolSize:    poolSize,
		frames:      make([]*page.Page, poolSize),
		pageTable:   hash.NewExtendibleHashTable[page.PageID, int](bucketSize, hash.HashPageID),
		replacer:    NewLRUKReplacer(poolSize, replacerK),
		freeList:    make([]int, 0, poolSize),
		logger:      logger,
		metrics:     newPoolMetrics(),
	}
	for i := 0; i < poolSize; i++ {
		bpm.frames[i] = page.New(page.InvalidPageID, diskManager.PageSize())
		bpm.freeList = append(bpm.freeList, i)
	}
	return bpm
}

// PoolSize returns the number of frames.
func (bpm *BufferPoolManager) PoolSize() int { return bpm.poolSize }

// PageSize returns the page size in bytes.
func (bpm *BufferPoolManager) PageSize() int { return bpm.diskManager.PageSize() }

// acquireFrame hands out a free frame, evicting a victim when none is free.
// Dirty victims are flushed first. Caller holds bpm.mu.
func (bpm *BufferPoolManager) acquireFrame() (int, error) {
	if n := len(bpm.freeList); n > 0 {
		frameID := bpm.freeList[n-1]
		bpm.freeList = bpm.freeList[:n-1]
		return frameID, nil
	}
	frameID, ok := bpm.replacer.Evict()
	if !ok {
		return -1, ErrBufferPoolFull
	}
	victim := bpm.frames[frameID]
	if victim.IsDirty() {
		if err := bpm.diskManager.WritePage(victim.ID(), victim.Data()); err != nil {
			return -1, fmt.Errorf("failed to flush dirty victim page %d: %w", victim.ID(), err)
		}
	}
	bpm.metrics.eviction(victim.ID())
	bpm.pageTable.Remove(victim.ID())
	victim.Reset()
	return frameID, nil
}

// NewPage allocates a page on disk and pins it into a frame. The returned
// page is zero-filled and marked dirty.
func (bpm *BufferPoolManager) NewPage() (*page.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, err := bpm.acquireFrame()
	if err != nil {
		return nil, err
	}
	pageID, err := bpm.diskManager.AllocatePage()
	if err != nil {
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, err
	}

	frame := bpm.frames[frameID]
	frame.Reset()
	frame.SetID(pageID)
	frame.SetPinCount(1)
	frame.SetDirty(true)

	bpm.pageTable.Insert(pageID, frameID)
	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	bpm.logger.Debug("allocated page", logger.Page(pageID), logger.Frame(frameID))
	return frame, nil
}

// FetchPage returns the pinned page, reading it from disk if not resident.
func (bpm *BufferPoolManager) FetchPage(pageID page.PageID) (*page.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frameID, ok := bpm.pageTable.Find(pageID); ok {
		frame := bpm.frames[frameID]
		frame.Pin()
		bpm.replacer.RecordAccess(frameID)
		bpm.replacer.SetEvictable(frameID, false)
		bpm.metrics.hit()
		return frame, nil
	}
	bpm.metrics.miss()

	frameID, err := bpm.acquireFrame()
	if err != nil {
		return nil, err
	}
	frame := bpm.frames[frameID]
	if err := bpm.diskManager.ReadPage(pageID, frame.Data()); err != nil {
		frame.Reset()
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
	}
	frame.SetID(pageID)
	frame.SetPinCount(1)
	frame.SetDirty(false)

	bpm.pageTable.Insert(pageID, frameID)
	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	return frame, nil
}

// UnpinPage drops one pin on the page, marking it dirty when the caller
// modified it. When the pin count reaches zero the frame becomes evictable.
func (bpm *BufferPoolManager) UnpinPage(pageID page.PageID, isDirty bool) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		return fmt.Errorf("%w: page %d to unpin", ErrPageNotFound, pageID)
	}
	frame := bpm.frames[frameID]
	if frame.PinCount() == 0 {
		return fmt.Errorf("%w: page %d", ErrPageNotPinned, pageID)
	}
	frame.Unpin()
	if isDirty {
		frame.SetDirty(true)
	}
	if frame.PinCount() == 0 {
		bpm.replacer.SetEvictable(frameID, true)
	}
	return nil
}

// DeletePage evicts the page from the pool and frees it on disk. The caller
// must have released all pins and latches on it.
func (bpm *BufferPoolManager) DeletePage(pageID page.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable.Find(pageID)
	if ok {
		frame := bpm.frames[frameID]
		if frame.PinCount() > 0 {
			return fmt.Errorf("%w: page %d has pin count %d", ErrPagePinned, pageID, frame.PinCount())
		}
		bpm.pageTable.Remove(pageID)
		if err := bpm.replacer.Remove(frameID); err != nil {
			return err
		}
		frame.Reset()
		bpm.freeList = append(bpm.freeList, frameID)
	}
	return bpm.diskManager.DeallocatePage(pageID)
}

// FlushPage writes the page back to disk if dirty.
func (bpm *BufferPoolManager) FlushPage(pageID page.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		return fmt.Errorf("%w: page %d to flush", ErrPageNotFound, pageID)
	}
	return bpm.flushFrame(bpm.frames[frameID])
}

// flushFrame writes one dirty frame back. Caller holds bpm.mu.
func (bpm *BufferPoolManager) flushFrame(frame *page.Page) error {
	if !frame.IsDirty() {
		return nil
	}
	if err := bpm.diskManager.WritePage(frame.ID(), frame.Data()); err != nil {
		return err
	}
	frame.SetDirty(false)
	bpm.metrics.flush()
	return nil
}

// FlushAllPages writes every dirty frame back and syncs the file.
func (bpm *BufferPoolManager) FlushAllPages() error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	var firstErr error
	for _, frame := range bpm.frames {
		if !frame.ID().IsValid() {
			continue
		}
		if err := bpm.flushFrame(frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := bpm.diskManager.Sync(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Close flushes all pages and closes the disk manager.
func (bpm *BufferPoolManager) Close() error {
	if err := bpm.FlushAllPages(); err != nil {
		return err
	}
	return bpm.diskManager.Close()
}

// flushNextDirty finds one dirty, unpinned frame and writes it back. Returns
// false when no such frame exists.
func (bpm *BufferPoolManager) flushNextDirty() (bool, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	for _, frame := range bpm.frames {
		if frame.ID().IsValid() && frame.IsDirty() && frame.PinCount() == 0 {
			return true, bpm.flushFrame(frame)
		}
	}
	return false, nil
}
