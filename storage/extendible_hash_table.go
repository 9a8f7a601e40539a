package storage

import (
	"sync"

	"go.uber.org/zap"
)

const (
	// MaxHashBits is the largest global depth a 64-bit Hasher can address
	MaxHashBits = 63

	// DefaultMaxGlobalDepth caps the directory at 2^24 slots (128 MiB of
	// bucket indices). Keys agreeing on more low hash bits than this
	// exhaust the table instead of growing the directory until memory runs out.
	DefaultMaxGlobalDepth = 24
)

// ExtendibleHashTable is a thread-safe hash table built over a directory of
// buckets addressed by the low globalDepth bits of a key's hash.
//
// Buckets live in an arena and the directory stores arena indices, so a
// bucket referenced from 2^(globalDepth-localDepth) slots is mutated once and
// seen through all of them. A full bucket is split in place; the directory
// only doubles when the bucket's local depth already equals the global depth.
// Buckets are never merged and the directory never shrinks. The directory
// grows to at most 2^maxDepth slots (see WithMaxGlobalDepth).
type ExtendibleHashTable[K comparable, V any] struct {
	globalDepth int
	maxDepth    int
	bucketSize  int
	directory   []int
	buckets     []*bucket[K, V]
	size        int
	hash        Hasher[K]
	metrics     *Metrics
	logger      *zap.Logger
	mutex       sync.Mutex
}

// NewExtendibleHashTable creates a table with one empty bucket of depth 0.
// It panics with ErrCodeInvalidArgument if bucketSize < 1 or hash is nil.
func NewExtendibleHashTable[K comparable, V any](bucketSize int, hash Hasher[K], opts ...Option) *ExtendibleHashTable[K, V] {
	if bucketSize < 1 {
		panic(ErrInvalidArgument("NewExtendibleHashTable", "bucket size must be at least 1"))
	}
	if hash == nil {
		panic(ErrInvalidArgument("NewExtendibleHashTable", "hasher must not be nil"))
	}
	o := buildOptions(opts)
	return &ExtendibleHashTable[K, V]{
		maxDepth:   o.maxDepth,
		bucketSize: bucketSize,
		directory:  []int{0},
		buckets:    []*bucket[K, V]{newBucket[K, V](bucketSize, 0)},
		hash:       hash,
		metrics:    o.metrics,
		logger:     o.logger,
	}
}

// indexOf returns the directory slot for key. Caller holds the mutex.
func (t *ExtendibleHashTable[K, V]) indexOf(key K) int {
	mask := uint64(1)<<t.globalDepth - 1
	return int(t.hash(key) & mask)
}

// bucketAt resolves a directory slot. Caller holds the mutex.
func (t *ExtendibleHashTable[K, V]) bucketAt(op string, index int) *bucket[K, V] {
	if index < 0 || index >= len(t.directory) {
		panic(ErrDirectoryIndex(op, index, len(t.directory)))
	}
	return t.buckets[t.directory[index]]
}

// Find looks up the value stored under key
func (t *ExtendibleHashTable[K, V]) Find(key K) (V, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	value, ok := t.bucketAt("Find", t.indexOf(key)).find(key)
	t.metrics.RecordLookup(ok)
	return value, ok
}

// Remove deletes key and reports whether it was present
func (t *ExtendibleHashTable[K, V]) Remove(key K) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	removed := t.bucketAt("Remove", t.indexOf(key)).remove(key)
	if removed {
		t.size--
		t.metrics.RecordHashRemove()
	}
	return removed
}

// Insert stores value under key, overwriting an existing value. A full
// bucket is split, doubling the directory if needed, until the key fits.
// It panics with ErrCodeHashExhausted when the key cannot be placed without
// doubling past the maximum global depth; the table stays consistent.
func (t *ExtendibleHashTable[K, V]) Insert(key K, value V) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for {
		index := t.indexOf(key)
		b := t.bucketAt("Insert", index)
		inserted, added := b.insert(key, value)
		if inserted {
			if added {
				t.size++
			}
			t.metrics.RecordHashInsert()
			return
		}
		if t.sameHash(b, key) {
			panic(ErrHashExhausted("Insert", t.globalDepth))
		}
		t.split(index)
	}
}

// sameHash reports whether key and every entry of b hash identically, in
// which case no number of splits can separate them. Caller holds the mutex.
func (t *ExtendibleHashTable[K, V]) sameHash(b *bucket[K, V], key K) bool {
	h := t.hash(key)
	for _, e := range b.entries {
		if t.hash(e.key) != h {
			return false
		}
	}
	return true
}

// split divides the bucket referenced by directory slot index on one more
// hash bit. Caller holds the mutex.
func (t *ExtendibleHashTable[K, V]) split(index int) {
	oldID := t.directory[index]
	old := t.buckets[oldID]

	if old.depth == t.globalDepth {
		if t.globalDepth >= t.maxDepth {
			panic(ErrHashExhausted("Insert", t.globalDepth))
		}
		// Every slot i in the new upper half starts as a copy of slot i & oldMask
		t.directory = append(t.directory, t.directory...)
		t.globalDepth++
		t.metrics.RecordDirectoryDoubling()
		t.logger.Debug("directory doubled",
			zap.Int("global_depth", t.globalDepth),
			zap.Int("slots", len(t.directory)),
		)
	}

	old.depth++
	splitBit := uint64(1) << (old.depth - 1)

	sibling := newBucket[K, V](t.bucketSize, old.depth)
	siblingID := len(t.buckets)
	t.buckets = append(t.buckets, sibling)

	kept := make([]entry[K, V], 0, t.bucketSize)
	for _, e := range old.entries {
		if t.hash(e.key)&splitBit != 0 {
			sibling.entries = append(sibling.entries, e)
		} else {
			kept = append(kept, e)
		}
	}
	old.entries = kept

	// Slots referencing the old bucket share its low (depth-1) bits; the ones
	// with the split bit set now belong to the sibling.
	stride := int(splitBit)
	for i := index & (stride - 1); i < len(t.directory); i += stride {
		if t.directory[i] == oldID && uint64(i)&splitBit != 0 {
			t.directory[i] = siblingID
		}
	}

	t.metrics.RecordBucketSplit()
	t.logger.Debug("bucket split",
		zap.Int("slot", index),
		zap.Int("local_depth", old.depth),
		zap.Int("kept", len(old.entries)),
		zap.Int("moved", len(sibling.entries)),
		zap.Int("buckets", len(t.buckets)),
	)
}

// GetMaxGlobalDepth returns the depth limit of the directory
func (t *ExtendibleHashTable[K, V]) GetMaxGlobalDepth() int {
	return t.maxDepth
}

// GetGlobalDepth returns the number of hash bits indexing the directory
func (t *ExtendibleHashTable[K, V]) GetGlobalDepth() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.globalDepth
}

// GetLocalDepth returns the depth of the bucket behind directory slot
// dirIndex. An index outside the directory panics with ErrCodeDirectoryIndex.
func (t *ExtendibleHashTable[K, V]) GetLocalDepth(dirIndex int) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.bucketAt("GetLocalDepth", dirIndex).depth
}

// GetNumBuckets returns the number of distinct buckets
func (t *ExtendibleHashTable[K, V]) GetNumBuckets() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.buckets)
}

// Len returns the number of stored entries
func (t *ExtendibleHashTable[K, V]) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.size
}

// Range calls fn for every entry, visiting each bucket once in order of its
// lowest directory slot, and stops early if fn returns false.
// fn runs under the table lock and must not call back into the table.
func (t *ExtendibleHashTable[K, V]) Range(fn func(key K, value V) bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	seen := make([]bool, len(t.buckets))
	for _, id := range t.directory {
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, e := range t.buckets[id].entries {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}
