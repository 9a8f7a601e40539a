package storage

type entry[K comparable, V any] struct {
	key   K
	value V
}

// bucket is an unordered list of at most capacity entries whose hashes agree
// on the low depth bits.
type bucket[K comparable, V any] struct {
	entries  []entry[K, V]
	capacity int
	depth    int
}

func newBucket[K comparable, V any](capacity, depth int) *bucket[K, V] {
	return &bucket[K, V]{
		entries:  make([]entry[K, V], 0, capacity),
		capacity: capacity,
		depth:    depth,
	}
}

func (b *bucket[K, V]) isFull() bool {
	return len(b.entries) >= b.capacity
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for _, e := range b.entries {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for i, e := range b.entries {
		if e.key == key {
			last := len(b.entries) - 1
			b.entries[i] = b.entries[last]
			b.entries[last] = entry[K, V]{}
			b.entries = b.entries[:last]
			return true
		}
	}
	return false
}

// insert overwrites an existing key even when the bucket is full.
// inserted is false only when the key is new and there is no room; added
// reports whether a new entry was appended.
func (b *bucket[K, V]) insert(key K, value V) (inserted, added bool) {
	for i := range b.entries {
		if b.entries[i].key == key {
			b.entries[i].value = value
			return true, false
		}
	}
	if b.isFull() {
		return false, false
	}
	b.entries = append(b.entries, entry[K, V]{key: key, value: value})
	return true, true
}
