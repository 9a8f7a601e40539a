package storage

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// BufferPoolSimulator drives a replacer and a page table the way a buffer
// pool manager does, without disk I/O or page contents. It tracks which page
// occupies each frame and how many times it is pinned, and is used to
// evaluate replacement policies against access traces.
type BufferPoolSimulator struct {
	poolSize  uint32
	frames    []PageID // page resident in each frame
	resident  []bool
	pinCounts []int
	pageTable *ShardedPageTable
	freeList  []FrameID
	replacer  Replacer
	metrics   *Metrics
	logger    *zap.Logger
	mutex     sync.Mutex
}

// SimulationResult summarizes one Replay run
type SimulationResult struct {
	Accesses  int
	Hits      int
	Misses    int
	Evictions int
}

// HitRate returns Hits / Accesses, or 0 for an empty run
func (r SimulationResult) HitRate() float64 {
	if r.Accesses == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Accesses)
}

// NewBufferPoolSimulator creates a simulator from cfg
func NewBufferPoolSimulator(cfg *Config, opts ...Option) (*BufferPoolSimulator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidConfig("NewBufferPoolSimulator", err)
	}

	o := buildOptions(opts)
	// Share the resolved collaborators with every component
	shared := []Option{WithMetrics(o.metrics), WithLogger(o.logger)}
	tableOpts := append([]Option{WithMaxGlobalDepth(cfg.MaxGlobalDepth)}, shared...)

	sim := &BufferPoolSimulator{
		poolSize:  cfg.PoolSize,
		frames:    make([]PageID, cfg.PoolSize),
		resident:  make([]bool, cfg.PoolSize),
		pinCounts: make([]int, cfg.PoolSize),
		pageTable: NewShardedPageTable(cfg.PageTableShards, cfg.BucketSize, tableOpts...),
		freeList:  make([]FrameID, 0, cfg.PoolSize),
		replacer:  NewReplacer(cfg.CacheReplacer, cfg.PoolSize, cfg.ReplacerK, shared...),
		metrics:   o.metrics,
		logger:    o.logger,
	}

	// Initialize free list with all frame indices
	for i := uint32(0); i < cfg.PoolSize; i++ {
		sim.freeList = append(sim.freeList, FrameID(i))
	}

	return sim, nil
}

// GetPoolSize returns the pool size
func (s *BufferPoolSimulator) GetPoolSize() uint32 {
	return s.poolSize
}

// GetReplacer returns the replacement policy
func (s *BufferPoolSimulator) GetReplacer() Replacer {
	return s.replacer
}

// GetPageTable returns the page directory
func (s *BufferPoolSimulator) GetPageTable() *ShardedPageTable {
	return s.pageTable
}

// GetMetrics returns the shared metrics
func (s *BufferPoolSimulator) GetMetrics() *Metrics {
	return s.metrics
}

// GetPinCount returns the pin count of a resident page
func (s *BufferPoolSimulator) GetPinCount(pageID PageID) (int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	frameID, exists := s.pageTable.Get(pageID)
	if !exists {
		return 0, false
	}
	return s.pinCounts[frameID], true
}

// FreeFrameCount returns the number of frames never used or released by DeletePage
func (s *BufferPoolSimulator) FreeFrameCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.freeList)
}

// FetchPage pins pageID into a frame, evicting another page if needed
func (s *BufferPoolSimulator) FetchPage(pageID PageID) (FrameID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	frameID, _, err := s.fetchLocked(pageID)
	return frameID, err
}

// fetchLocked reports whether the page was already resident and whether a
// victim was evicted to make room. Caller holds the mutex.
func (s *BufferPoolSimulator) fetchLocked(pageID PageID) (frameID FrameID, evicted bool, err error) {
	if frameID, exists := s.pageTable.Get(pageID); exists {
		s.metrics.RecordCacheHit()
		s.pin(frameID)
		return frameID, false, nil
	}

	s.metrics.RecordCacheMiss()

	frameID, evicted, err = s.getFrameID()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get free frame: %w", err)
	}

	s.frames[frameID] = pageID
	s.resident[frameID] = true
	s.pinCounts[frameID] = 0
	s.pageTable.Put(pageID, frameID)
	s.pin(frameID)

	return frameID, evicted, nil
}

// pin records the access and keeps the frame out of eviction
func (s *BufferPoolSimulator) pin(frameID FrameID) {
	s.pinCounts[frameID]++
	s.replacer.RecordAccess(frameID)
	s.replacer.SetEvictable(frameID, false)
}

// UnpinPage drops one pin; the frame becomes evictable at zero pins
func (s *BufferPoolSimulator) UnpinPage(pageID PageID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.unpinLocked(pageID)
}

func (s *BufferPoolSimulator) unpinLocked(pageID PageID) error {
	frameID, exists := s.pageTable.Get(pageID)
	if !exists {
		return ErrPageNotFound("UnpinPage", pageID)
	}
	if s.pinCounts[frameID] == 0 {
		return ErrInvalidPin("UnpinPage", pageID)
	}

	s.pinCounts[frameID]--
	if s.pinCounts[frameID] == 0 {
		s.replacer.SetEvictable(frameID, true)
	}
	return nil
}

// DeletePage drops an unpinned page and returns its frame to the free list.
// Deleting a page that is not resident is a no-op.
func (s *BufferPoolSimulator) DeletePage(pageID PageID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	frameID, exists := s.pageTable.Get(pageID)
	if !exists {
		return nil
	}
	if pins := s.pinCounts[frameID]; pins > 0 {
		return ErrPagePinned("DeletePage", pageID, pins)
	}

	s.replacer.Remove(frameID)
	s.pageTable.Delete(pageID)
	s.resident[frameID] = false
	s.freeList = append(s.freeList, frameID)
	return nil
}

// Replay fetches and immediately unpins every page of trace in order
func (s *BufferPoolSimulator) Replay(trace []PageID) (SimulationResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var result SimulationResult
	for _, pageID := range trace {
		_, wasResident := s.pageTable.Get(pageID)
		_, evicted, err := s.fetchLocked(pageID)
		if err != nil {
			return result, fmt.Errorf("replay page %d: %w", pageID, err)
		}
		result.Accesses++
		if wasResident {
			result.Hits++
		} else {
			result.Misses++
		}
		if evicted {
			result.Evictions++
		}
		if err := s.unpinLocked(pageID); err != nil {
			return result, fmt.Errorf("replay page %d: %w", pageID, err)
		}
	}

	s.logger.Debug("trace replayed",
		zap.Int("accesses", result.Accesses),
		zap.Int("hits", result.Hits),
		zap.Int("evictions", result.Evictions),
	)
	return result, nil
}

// getFrameID returns a free frame ID, evicting a page if necessary
func (s *BufferPoolSimulator) getFrameID() (FrameID, bool, error) {
	// Try to get a free frame first
	if len(s.freeList) > 0 {
		frameID := s.freeList[0]
		s.freeList = s.freeList[1:]
		return frameID, false, nil
	}

	// No free frames, need to evict a page
	frameID, err := s.evictPage()
	if err != nil {
		return 0, false, err
	}
	return frameID, true, nil
}

// evictPage asks the replacer for a victim and drops its page table entry
func (s *BufferPoolSimulator) evictPage() (FrameID, error) {
	frameID, ok := s.replacer.Evict()
	if !ok {
		return 0, ErrNoFreeFrames("evictPage")
	}

	if s.resident[frameID] {
		victim := s.frames[frameID]
		s.pageTable.Delete(victim)
		s.resident[frameID] = false
		s.logger.Debug("page evicted",
			zap.Uint32("page_id", uint32(victim)),
			zap.Uint32("frame_id", uint32(frameID)),
		)
	}

	s.metrics.RecordPageEviction()
	return frameID, nil
}
