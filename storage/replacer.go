package storage

// Replacer interface for page replacement policies
// The buffer pool calls RecordAccess on every pin, SetEvictable when a
// frame's pin count reaches or leaves zero, and Evict when it needs a frame.
type Replacer interface {
	// RecordAccess notes an access to frameID at the current logical time
	RecordAccess(frameID FrameID)

	// SetEvictable controls whether frameID may be chosen as a victim
	SetEvictable(frameID FrameID, evictable bool)

	// Evict selects a frame to reclaim and forgets it
	// Returns the frame ID and true if a victim was found, false otherwise
	Evict() (FrameID, bool)

	// Remove forgets frameID; the frame must be evictable
	Remove(frameID FrameID)

	// Size returns the number of evictable frames
	Size() int
}

const (
	ReplacerLRUK = "lru-k"
	ReplacerLRU  = "lru"
)

// NewReplacer creates a replacer based on the specified algorithm.
// "lru" is LRU-K with k = 1: the k-th most recent access is the last one.
func NewReplacer(algorithm string, numFrames uint32, k int, opts ...Option) Replacer {
	switch algorithm {
	case ReplacerLRU:
		return NewLRUKReplacer(numFrames, 1, opts...)
	case ReplacerLRUK:
		return NewLRUKReplacer(numFrames, k, opts...)
	default:
		// Default to LRU-K
		return NewLRUKReplacer(numFrames, k, opts...)
	}
}
