package buffer

import (
	"errors"
	"sync"

	"github.com/kitsune-db/kitsunedb/core/container/hash"
)

var ErrFrameNotEvictable = errors.New("frame is pinned and cannot be removed from replacer")

// lruKNode tracks the access history of one frame: up to k logical timestamps,
// oldest first.
type lruKNode struct {
	history   []uint64
	evictable bool
}

// LRUKReplacer picks eviction victims by backward k-distance: the evictable
// frame whose k-th most recent access lies furthest in the past. Frames with
// fewer than k recorded accesses have infinite distance and are evicted first,
// ordered by their earliest access.
type LRUKReplacer struct {
	mu      sync.Mutex
	k       int
	clock   uint64
	nodes   *hash.ExtendibleHashTable[int, *lruKNode]
	curSize int
}

// NewLRUKReplacer creates a replacer for at most numFrames frames.
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	bucketSize := numFrames
	if bucketSize < 4 {
		bucketSize = 4
	}
	return &LRUKReplacer{
		k:     k,
		nodes: hash.NewExtendibleHashTable[int, *lruKNode](bucketSize, hash.HashInt),
	}
}

// RecordAccess notes an access to frameID at the current logical time.
func (r *LRUKReplacer) RecordAccess(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock++
	node, ok := r.nodes.Find(frameID)
	if !ok {
		node = &lruKNode{}
		r.nodes.Insert(frameID, node)
	}
	node.history = append(node.history, r.clock)
	if len(node.history) > r.k {
		node.history = node.history[len(node.history)-r.k:]
	}
}

// SetEvictable toggles whether frameID may be chosen as a victim.
func (r *LRUKReplacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes.Find(frameID)
	if !ok {
		return
	}
	if node.evictable != evictable {
		node.evictable = evictable
		if evictable {
			r.curSize++
		} else {
			r.curSize--
		}
	}
}

// Evict removes and returns the frame with the largest backward k-distance.
func (r *LRUKReplacer) Evict() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	victim := -1
	victimInf := false
	var victimStamp uint64
	r.nodes.Range(func(frameID int, node *lruKNode) bool {
		if !node.evictable {
			return true
		}
		inf := len(node.history) < r.k
		// The comparison stamp: earliest access for infinite-distance
		// frames, k-th most recent access otherwise.
		var stamp uint64
		if inf {
			stamp = node.history[0]
		} else {
			stamp = node.history[len(node.history)-r.k]
		}
		better := false
		switch {
		case victim == -1:
			better = true
		case inf && !victimInf:
			better = true
		case inf == victimInf && stamp < victimStamp:
			better = true
		}
		if better {
			victim = frameID
			victimInf = inf
			victimStamp = stamp
		}
		return true
	})
	if victim == -1 {
		return -1, false
	}
	r.nodes.Remove(victim)
	r.curSize--
	return victim, true
}

// Remove drops frameID's history entirely. The frame must be evictable or
// untracked.
func (r *LRUKReplacer) Remove(frameID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes.Find(frameID)
	if !ok {
		return nil
	}
	if !node.evictable {
		return ErrFrameNotEvictable
	}
	r.nodes.Remove(frameID)
	r.curSize--
	return nil
}

// Size returns the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}
