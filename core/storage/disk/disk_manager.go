// Package disk implements direct page I/O against the database file.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
	"github.com/kitsune-db/kitsunedb/pkg/logger"
)

// --- Error Definitions ---

var (
	ErrIO              = errors.New("i/o error")
	ErrFileNotOpen     = errors.New("database file not open")
	ErrInvalidPageID   = errors.New("page id out of bounds")
	ErrPageDeallocated = errors.New("page already deallocated")
)

// Manager is responsible for reading and writing pages at their file offsets
// and for allocating page ids. Page 0 is reserved for the index header page:
// on a fresh file it is the id returned by the first AllocatePage call, and it
// is never deallocated.
type Manager struct {
	filePath string
	file     *os.File
	pageSize int
	numPages int64

	// freeList holds deallocated page ids available for reuse. It is not
	// persisted; reopening a file forgets previously freed pages.
	freeList []page.PageID
	freeSet  map[page.PageID]struct{}

	mu     sync.Mutex
	logger *zap.Logger
}

// NewManager opens (or creates) the database file at filePath.
func NewManager(filePath string, pageSize int, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("%w: opening file %s: %v", ErrIO, filePath, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stating file %s: %v", ErrIO, filePath, err)
	}
	dm := &Manager{
		filePath: filePath,
		file:     file,
		pageSize: pageSize,
		numPages: fi.Size() / int64(pageSize),
		freeSet:  make(map[page.PageID]struct{}),
		logger:   logger,
	}
	logger.Debug("disk manager opened",
		zap.String("path", filePath),
		zap.Int64("num_pages", dm.numPages))
	return dm, nil
}

// PageSize returns the configured page size in bytes.
func (dm *Manager) PageSize() int { return dm.pageSize }

// ReadPage reads the page's data from disk into the provided buffer.
func (dm *Manager) ReadPage(pageID page.PageID, pageData []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrFileNotOpen
	}
	if len(pageData) != dm.pageSize {
		return fmt.Errorf("page data buffer size (%d) != disk manager page size (%d)", len(pageData), dm.pageSize)
	}
	if pageID < 0 || int64(pageID) >= dm.numPages {
		return fmt.Errorf("%w: page %d, file has %d pages", ErrInvalidPageID, pageID, dm.numPages)
	}
	offset := int64(pageID) * int64(dm.pageSize)
	bytesRead, err := dm.file.ReadAt(pageData, offset)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: EOF reading page %d at offset %d", ErrIO, pageID, offset)
		}
		return fmt.Errorf("%w: reading page %d at offset %d: %v", ErrIO, pageID, offset, err)
	}
	if bytesRead != dm.pageSize {
		return fmt.Errorf("%w: short read for page %d, expected %d, got %d", ErrIO, pageID, dm.pageSize, bytesRead)
	}
	return nil
}

// WritePage writes pageData to the page's location. Durability is handled by
// Sync, driven by the buffer pool flush paths.
func (dm *Manager) WritePage(pageID page.PageID, pageData []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrFileNotOpen
	}
	if len(pageData) != dm.pageSize {
		return fmt.Errorf("page data buffer size (%d) != disk manager page size (%d)", len(pageData), dm.pageSize)
	}
	offset := int64(pageID) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(pageData, offset); err != nil {
		return fmt.Errorf("%w: writing page %d at offset %d: %v", ErrIO, pageID, offset, err)
	}
	return nil
}

// AllocatePage returns a fresh page id, reusing a deallocated page when one is
// available and extending the file otherwise.
func (dm *Manager) AllocatePage() (page.PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return page.InvalidPageID, ErrFileNotOpen
	}
	if n := len(dm.freeList); n > 0 {
		id := dm.freeList[n-1]
		dm.freeList = dm.freeList[:n-1]
		delete(dm.freeSet, id)
		dm.logger.Debug("reused freed page", logger.Page(id))
		return id, nil
	}
	newPageID := page.PageID(dm.numPages)
	emptyPageData := make([]byte, dm.pageSize)
	offset := int64(newPageID) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(emptyPageData, offset); err != nil {
		return page.InvalidPageID, fmt.Errorf("%w: extending file for new page %d: %v", ErrIO, newPageID, err)
	}
	dm.numPages++
	return newPageID, nil
}

// DeallocatePage returns a page to the free list. The header page is never
// deallocated.
func (dm *Manager) DeallocatePage(pageID page.PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if pageID <= page.HeaderPageID || int64(pageID) >= dm.numPages {
		return fmt.Errorf("%w: page %d", ErrInvalidPageID, pageID)
	}
	if _, ok := dm.freeSet[pageID]; ok {
		return fmt.Errorf("%w: page %d", ErrPageDeallocated, pageID)
	}
	dm.freeList = append(dm.freeList, pageID)
	dm.freeSet[pageID] = struct{}{}
	return nil
}

// NumPages returns the number of pages the file currently spans.
func (dm *Manager) NumPages() int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numPages
}

// LivePages returns the number of allocated pages not on the free list,
// including the header page.
func (dm *Manager) LivePages() int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numPages - int64(len(dm.freeList))
}

// Sync flushes all buffered writes to stable storage.
func (dm *Manager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file != nil {
		return dm.file.Sync()
	}
	return nil
}

// Close syncs and closes the underlying file handle.
func (dm *Manager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	if err := dm.file.Sync(); err != nil {
		dm.logger.Warn("sync on close failed", zap.Error(err))
	}
	closeErr := dm.file.Close()
	dm.file = nil
	return closeErr
}
