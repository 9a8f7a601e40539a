package storage

// ShardedPageTable maps resident page IDs to frame IDs.
// Each shard is an extendible hash table with its own lock, which reduces
// contention when many workers resolve pages at once.
type ShardedPageTable struct {
	shards    []*ExtendibleHashTable[PageID, FrameID]
	numShards uint32
}

// PageTableShardStats describes the directory shape of one shard
type PageTableShardStats struct {
	Entries     int
	GlobalDepth int
	NumBuckets  int
}

// NewShardedPageTable creates a new sharded page table
// numShards should be a power of 2 for efficient modulo operations
// bucketSize is the capacity of every extendible hash bucket
func NewShardedPageTable(numShards uint32, bucketSize int, opts ...Option) *ShardedPageTable {
	if numShards == 0 {
		numShards = 64 // Default to 64 shards
	}

	// Pages in one shard agree on pageID % numShards, so the shard tables
	// address buckets with a mixed hash rather than the raw page ID bits.
	shards := make([]*ExtendibleHashTable[PageID, FrameID], numShards)
	for i := uint32(0); i < numShards; i++ {
		shards[i] = NewExtendibleHashTable[PageID, FrameID](bucketSize, Uint32Hasher[PageID](), opts...)
	}

	return &ShardedPageTable{
		shards:    shards,
		numShards: numShards,
	}
}

// getShard returns the shard for a given page ID
func (spt *ShardedPageTable) getShard(pageID PageID) *ExtendibleHashTable[PageID, FrameID] {
	return spt.shards[uint32(pageID)%spt.numShards]
}

// Get returns the frame holding pageID
func (spt *ShardedPageTable) Get(pageID PageID) (FrameID, bool) {
	return spt.getShard(pageID).Find(pageID)
}

// Put adds or updates the frame for pageID
func (spt *ShardedPageTable) Put(pageID PageID, frameID FrameID) {
	spt.getShard(pageID).Insert(pageID, frameID)
}

// Delete removes pageID and reports whether it was resident
func (spt *ShardedPageTable) Delete(pageID PageID) bool {
	return spt.getShard(pageID).Remove(pageID)
}

// Size returns the total number of pages across all shards
func (spt *ShardedPageTable) Size() int {
	total := 0
	for _, shard := range spt.shards {
		total += shard.Len()
	}
	return total
}

// ForEach executes a function for each page in the table
// The function is called while holding the shard lock, so it should be fast
func (spt *ShardedPageTable) ForEach(fn func(pageID PageID, frameID FrameID) bool) {
	stopped := false
	for _, shard := range spt.shards {
		shard.Range(func(pageID PageID, frameID FrameID) bool {
			if !fn(pageID, frameID) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
	}
}

// GetStats returns per-shard directory statistics
func (spt *ShardedPageTable) GetStats() []PageTableShardStats {
	stats := make([]PageTableShardStats, len(spt.shards))
	for i, shard := range spt.shards {
		stats[i] = PageTableShardStats{
			Entries:     shard.Len(),
			GlobalDepth: shard.GetGlobalDepth(),
			NumBuckets:  shard.GetNumBuckets(),
		}
	}
	return stats
}
