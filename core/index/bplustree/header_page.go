package bplustree

import (
	"bytes"
	"encoding/binary"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// The header page lives at page 0 and maps index names to their root page
// ids so root changes survive restarts.
//
// Layout: magic u32, version u32, recordCount i32, then fixed-width records
// of (32-byte name, rootPageID i32).
const (
	headerMagic   uint32 = 0x4B49DB01 // "KIdb" header page v1
	headerVersion uint32 = 1

	offsetHeaderMagic   = 0
	offsetHeaderVersion = 4
	offsetRecordCount   = 8
	headerRecordsStart  = 12

	headerNameSize   = 32
	headerRecordSize = headerNameSize + 4
)

// HeaderPage is the in-place view of page 0.
type HeaderPage struct {
	data []byte
}

// HeaderView wraps the pinned header page buffer.
func HeaderView(data []byte) *HeaderPage { return &HeaderPage{data: data} }

// Init stamps a fresh header page.
func (hp *HeaderPage) Init() {
	binary.LittleEndian.PutUint32(hp.data[offsetHeaderMagic:], headerMagic)
	binary.LittleEndian.PutUint32(hp.data[offsetHeaderVersion:], headerVersion)
	hp.setRecordCount(0)
}

// IsValid reports whether the page carries the header magic.
func (hp *HeaderPage) IsValid() bool {
	return binary.LittleEndian.Uint32(hp.data[offsetHeaderMagic:]) == headerMagic
}

func (hp *HeaderPage) recordCount() int {
	return int(int32(binary.LittleEndian.Uint32(hp.data[offsetRecordCount:])))
}

func (hp *HeaderPage) setRecordCount(n int) {
	binary.LittleEndian.PutUint32(hp.data[offsetRecordCount:], uint32(int32(n)))
}

func (hp *HeaderPage) maxRecords() int {
	return (len(hp.data) - headerRecordsStart) / headerRecordSize
}

func (hp *HeaderPage) recordOffset(i int) int {
	return headerRecordsStart + i*headerRecordSize
}

func (hp *HeaderPage) nameAt(i int) []byte {
	off := hp.recordOffset(i)
	raw := hp.data[off : off+headerNameSize]
	if idx := bytes.IndexByte(raw, 0); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

func (hp *HeaderPage) findRecord(name string) int {
	for i := 0; i < hp.recordCount(); i++ {
		if string(hp.nameAt(i)) == name {
			return i
		}
	}
	return -1
}

// InsertRecord adds a new (name, rootID) record. It fails when the name is
// already present, too long, or the page is full.
func (hp *HeaderPage) InsertRecord(name string, rootID page.PageID) bool {
	if len(name) == 0 || len(name) > headerNameSize {
		return false
	}
	if hp.findRecord(name) >= 0 {
		return false
	}
	n := hp.recordCount()
	if n >= hp.maxRecords() {
		return false
	}
	off := hp.recordOffset(n)
	for i := 0; i < headerNameSize; i++ {
		hp.data[off+i] = 0
	}
	copy(hp.data[off:off+headerNameSize], name)
	binary.LittleEndian.PutUint32(hp.data[off+headerNameSize:], uint32(rootID))
	hp.setRecordCount(n + 1)
	return true
}

// UpdateRecord rewrites the root id stored under name.
func (hp *HeaderPage) UpdateRecord(name string, rootID page.PageID) bool {
	i := hp.findRecord(name)
	if i < 0 {
		return false
	}
	off := hp.recordOffset(i)
	binary.LittleEndian.PutUint32(hp.data[off+headerNameSize:], uint32(rootID))
	return true
}

// DeleteRecord removes name's record, shifting later records down.
func (hp *HeaderPage) DeleteRecord(name string) bool {
	i := hp.findRecord(name)
	if i < 0 {
		return false
	}
	n := hp.recordCount()
	copy(hp.data[hp.recordOffset(i):], hp.data[hp.recordOffset(i+1):hp.recordOffset(n)])
	hp.setRecordCount(n - 1)
	return true
}

// RootID returns the root page id recorded under name.
func (hp *HeaderPage) RootID(name string) (page.PageID, bool) {
	i := hp.findRecord(name)
	if i < 0 {
		return page.InvalidPageID, false
	}
	off := hp.recordOffset(i)
	return page.PageID(int32(binary.LittleEndian.Uint32(hp.data[off+headerNameSize:]))), true
}
