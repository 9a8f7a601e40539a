// Package storage provides the frame replacement and page directory
// primitives of a buffer pool.
//
// [LRUKReplacer] chooses which frame to reclaim under the LRU-K policy: the
// victim is the evictable frame whose k-th most recent access lies furthest in
// the past, and frames seen fewer than k times are reclaimed first, oldest
// access first.
//
// [ExtendibleHashTable] is a generic key/value directory that grows one bucket
// at a time. A full bucket splits on one more hash bit; the directory doubles
// only when that bucket already uses every directory bit.
//
// Both types guard all operations with a single mutex per instance.
// Contract violations (out-of-range frame IDs, removing a pinned frame,
// directory corruption) panic with a [*StorageError]; ordinary absence is
// reported through boolean results.
//
// [ShardedPageTable] and [BufferPoolSimulator] compose the two the way a
// buffer pool manager would, and [Metrics] exports their counters to
// Prometheus.
package storage
