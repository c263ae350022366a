// Package hash provides a concurrent in-memory extendible hash table. It is
// the general associative container used by the buffer pool page table and
// the LRU-K replacer bookkeeping.
package hash

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

// HashFunc maps a key to the bit string the directory discriminates on.
type HashFunc[K comparable] func(K) uint64

// ExtendibleHashTable is a directory-doubling hash table. A single table-wide
// mutex guards all operations.
//
// Invariant: two directory slots i and j reference the same bucket iff i and
// j agree in their low local-depth bits.
type ExtendibleHashTable[K comparable, V any] struct {
	mu          sync.Mutex
	globalDepth int
	bucketSize  int
	numBuckets  int
	dir         []*bucket[K, V]
	hash        HashFunc[K]
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// bucket holds an insertion-ordered list of pairs with no duplicate keys.
type bucket[K comparable, V any] struct {
	capacity int
	depth    int
	items    []entry[K, V]
}

func newBucket[K comparable, V any](capacity, depth int) *bucket[K, V] {
	return &bucket[K, V]{
		capacity: capacity,
		depth:    depth,
		items:    make([]entry[K, V], 0, capacity),
	}
}

func (b *bucket[K, V]) isFull() bool { return len(b.items) >= b.capacity }

func (b *bucket[K, V]) find(key K) (V, bool) {
	for _, it := range b.items {
		if it.key == key {
			return it.value, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for i, it := range b.items {
		if it.key == key {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// insert overwrites an existing key in place, otherwise appends. Returns
// false when the bucket is full and the key is absent.
func (b *bucket[K, V]) insert(key K, value V) bool {
	for i, it := range b.items {
		if it.key == key {
			b.items[i].value = value
			return true
		}
	}
	if b.isFull() {
		return false
	}
	b.items = append(b.items, entry[K, V]{key: key, value: value})
	return true
}

// NewExtendibleHashTable creates a table whose buckets hold up to bucketSize
// entries, starting with a single bucket at depth zero.
func NewExtendibleHashTable[K comparable, V any](bucketSize int, hashFn HashFunc[K]) *ExtendibleHashTable[K, V] {
	return &ExtendibleHashTable[K, V]{
		globalDepth: 0,
		bucketSize:  bucketSize,
		numBuckets:  1,
		dir:         []*bucket[K, V]{newBucket[K, V](bucketSize, 0)},
		hash:        hashFn,
	}
}

func (h *ExtendibleHashTable[K, V]) indexOf(key K) int {
	mask := uint64(1)<<h.globalDepth - 1
	return int(h.hash(key) & mask)
}

// GlobalDepth returns the number of hash bits the directory discriminates.
func (h *ExtendibleHashTable[K, V]) GlobalDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.globalDepth
}

// LocalDepth returns the depth of the bucket referenced by directory slot
// dirIndex.
func (h *ExtendibleHashTable[K, V]) LocalDepth(dirIndex int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir[dirIndex].depth
}

// NumBuckets returns the number of distinct buckets.
func (h *ExtendibleHashTable[K, V]) NumBuckets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.numBuckets
}

// Find returns the value stored under key.
func (h *ExtendibleHashTable[K, V]) Find(key K) (V, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir[h.indexOf(key)].find(key)
}

// Remove deletes the entry for key, reporting whether it was present.
func (h *ExtendibleHashTable[K, V]) Remove(key K) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dir[h.indexOf(key)].remove(key)
}

// Insert stores value under key, overwriting any existing entry. When the
// target bucket is full it splits, doubling the directory if the bucket's
// local depth has reached the global depth, and retries until the target
// bucket has room. Splitting can leave one replacement bucket still full; the
// loop re-enters with that bucket.
func (h *ExtendibleHashTable[K, V]) Insert(key K, value V) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.dir[h.indexOf(key)].isFull() {
		target := h.dir[h.indexOf(key)]

		if target.depth == h.globalDepth {
			h.globalDepth++
			capacity := len(h.dir)
			h.dir = append(h.dir, make([]*bucket[K, V], capacity)...)
			for i := 0; i < capacity; i++ {
				h.dir[i+capacity] = h.dir[i]
			}
		}

		b0 := newBucket[K, V](h.bucketSize, target.depth+1)
		b1 := newBucket[K, V](h.bucketSize, target.depth+1)

		mask := uint64(1) << target.depth
		for _, it := range target.items {
			if h.hash(it.key)&mask != 0 {
				b1.insert(it.key, it.value)
			} else {
				b0.insert(it.key, it.value)
			}
		}
		h.numBuckets++

		for i := range h.dir {
			if h.dir[i] == target {
				if uint64(i)&mask != 0 {
					h.dir[i] = b1
				} else {
					h.dir[i] = b0
				}
			}
		}
	}
	h.dir[h.indexOf(key)].insert(key, value)
}

// Range calls fn for every stored entry, visiting each distinct bucket once
// in directory order, until fn returns false. The table lock is held for the
// duration; fn must not call back into the table.
func (h *ExtendibleHashTable[K, V]) Range(fn func(key K, value V) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*bucket[K, V]]struct{}, h.numBuckets)
	for _, b := range h.dir {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		for _, it := range b.items {
			if !fn(it.key, it.value) {
				return
			}
		}
	}
}

// Size returns the total number of stored entries.
func (h *ExtendibleHashTable[K, V]) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*bucket[K, V]]struct{}, h.numBuckets)
	total := 0
	for _, b := range h.dir {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		total += len(b.items)
	}
	return total
}

// --- Default hashers ---

// HashInt hashes an int key.
func HashInt(k int) uint64 { return HashUint64(uint64(k)) }

// HashInt32 hashes an int32 key.
func HashInt32(k int32) uint64 { return HashUint64(uint64(uint32(k))) }

// HashUint64 hashes a uint64 key.
func HashUint64(k uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], k)
	return xxhash.Sum64(buf[:])
}

// HashString hashes a string key.
func HashString(k string) uint64 { return xxhash.Sum64String(k) }

// HashPageID hashes a page id key.
func HashPageID(k page.PageID) uint64 { return HashInt32(int32(k)) }
