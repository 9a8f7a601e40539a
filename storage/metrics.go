package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics tracks replacer, hash table and buffer pool counters.
// A single Metrics may be shared by several components; it also implements
// prometheus.Collector so it can be registered directly.
type Metrics struct {
	// Replacer Metrics
	replacerAccesses  atomic.Uint64
	replacerEvictions atomic.Uint64
	replacerRemovals  atomic.Uint64

	// Hash Table Metrics
	hashLookups        atomic.Uint64
	hashLookupHits     atomic.Uint64
	hashInserts        atomic.Uint64
	hashRemoves        atomic.Uint64
	bucketSplits       atomic.Uint64
	directoryDoublings atomic.Uint64

	// Buffer Pool Metrics
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	pageEvictions atomic.Uint64

	// Timing Metrics
	startTime time.Time
	mu        sync.RWMutex
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// Replacer Metrics

func (m *Metrics) RecordReplacerAccess() {
	m.replacerAccesses.Add(1)
}

func (m *Metrics) RecordReplacerEviction() {
	m.replacerEvictions.Add(1)
}

func (m *Metrics) RecordReplacerRemoval() {
	m.replacerRemovals.Add(1)
}

// Hash Table Metrics

// RecordLookup counts a Find and whether it located the key
func (m *Metrics) RecordLookup(hit bool) {
	m.hashLookups.Add(1)
	if hit {
		m.hashLookupHits.Add(1)
	}
}

func (m *Metrics) RecordHashInsert() {
	m.hashInserts.Add(1)
}

func (m *Metrics) RecordHashRemove() {
	m.hashRemoves.Add(1)
}

func (m *Metrics) RecordBucketSplit() {
	m.bucketSplits.Add(1)
}

func (m *Metrics) RecordDirectoryDoubling() {
	m.directoryDoublings.Add(1)
}

// Buffer Pool Metrics

func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

func (m *Metrics) RecordPageEviction() {
	m.pageEvictions.Add(1)
}

// Getters

func (m *Metrics) GetReplacerAccesses() uint64 {
	return m.replacerAccesses.Load()
}

func (m *Metrics) GetReplacerEvictions() uint64 {
	return m.replacerEvictions.Load()
}

func (m *Metrics) GetReplacerRemovals() uint64 {
	return m.replacerRemovals.Load()
}

func (m *Metrics) GetHashLookups() uint64 {
	return m.hashLookups.Load()
}

func (m *Metrics) GetHashLookupHits() uint64 {
	return m.hashLookupHits.Load()
}

func (m *Metrics) GetHashInserts() uint64 {
	return m.hashInserts.Load()
}

func (m *Metrics) GetHashRemoves() uint64 {
	return m.hashRemoves.Load()
}

func (m *Metrics) GetBucketSplits() uint64 {
	return m.bucketSplits.Load()
}

func (m *Metrics) GetDirectoryDoublings() uint64 {
	return m.directoryDoublings.Load()
}

func (m *Metrics) GetCacheHits() uint64 {
	return m.cacheHits.Load()
}

func (m *Metrics) GetCacheMisses() uint64 {
	return m.cacheMisses.Load()
}

func (m *Metrics) GetCacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

func (m *Metrics) GetPageEvictions() uint64 {
	return m.pageEvictions.Load()
}

func (m *Metrics) GetUptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// LogMetrics logs all metrics using structured logging
func (m *Metrics) LogMetrics(logger *zap.Logger) {
	logger.Info("buffer metrics",
		zap.Dict("replacer",
			zap.Uint64("accesses", m.GetReplacerAccesses()),
			zap.Uint64("evictions", m.GetReplacerEvictions()),
			zap.Uint64("removals", m.GetReplacerRemovals()),
		),
		zap.Dict("hash_table",
			zap.Uint64("lookups", m.GetHashLookups()),
			zap.Uint64("lookup_hits", m.GetHashLookupHits()),
			zap.Uint64("inserts", m.GetHashInserts()),
			zap.Uint64("removes", m.GetHashRemoves()),
			zap.Uint64("bucket_splits", m.GetBucketSplits()),
			zap.Uint64("directory_doublings", m.GetDirectoryDoublings()),
		),
		zap.Dict("buffer_pool",
			zap.Uint64("cache_hits", m.GetCacheHits()),
			zap.Uint64("cache_misses", m.GetCacheMisses()),
			zap.Float64("cache_hit_rate", m.GetCacheHitRate()),
			zap.Uint64("page_evictions", m.GetPageEvictions()),
		),
		zap.Duration("uptime", m.GetUptime()),
	)
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	m.replacerAccesses.Store(0)
	m.replacerEvictions.Store(0)
	m.replacerRemovals.Store(0)
	m.hashLookups.Store(0)
	m.hashLookupHits.Store(0)
	m.hashInserts.Store(0)
	m.hashRemoves.Store(0)
	m.bucketSplits.Store(0)
	m.directoryDoublings.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.pageEvictions.Store(0)

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Prometheus export

const metricsNamespace = "hexbuffer"

type counterDesc struct {
	desc *prometheus.Desc
	load func(*Metrics) uint64
}

func newCounterDesc(subsystem, name, help string, load func(*Metrics) uint64) counterDesc {
	return counterDesc{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, subsystem, name),
			help, nil, nil,
		),
		load: load,
	}
}

var counterDescs = []counterDesc{
	newCounterDesc("replacer", "accesses_total", "Accesses recorded by the replacer.", (*Metrics).GetReplacerAccesses),
	newCounterDesc("replacer", "evictions_total", "Frames chosen as eviction victims.", (*Metrics).GetReplacerEvictions),
	newCounterDesc("replacer", "removals_total", "Frames explicitly removed from the replacer.", (*Metrics).GetReplacerRemovals),
	newCounterDesc("hash_table", "lookups_total", "Hash table lookups.", (*Metrics).GetHashLookups),
	newCounterDesc("hash_table", "lookup_hits_total", "Hash table lookups that found the key.", (*Metrics).GetHashLookupHits),
	newCounterDesc("hash_table", "inserts_total", "Hash table inserts and overwrites.", (*Metrics).GetHashInserts),
	newCounterDesc("hash_table", "removes_total", "Hash table entries removed.", (*Metrics).GetHashRemoves),
	newCounterDesc("hash_table", "bucket_splits_total", "Bucket splits.", (*Metrics).GetBucketSplits),
	newCounterDesc("hash_table", "directory_doublings_total", "Directory doublings.", (*Metrics).GetDirectoryDoublings),
	newCounterDesc("buffer_pool", "cache_hits_total", "Page fetches served from a resident frame.", (*Metrics).GetCacheHits),
	newCounterDesc("buffer_pool", "cache_misses_total", "Page fetches that needed a frame.", (*Metrics).GetCacheMisses),
	newCounterDesc("buffer_pool", "page_evictions_total", "Resident pages evicted to free a frame.", (*Metrics).GetPageEvictions),
}

var hitRateDesc = prometheus.NewDesc(
	prometheus.BuildFQName(metricsNamespace, "buffer_pool", "cache_hit_ratio"),
	"Fraction of page fetches served from a resident frame.", nil, nil,
)

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range counterDescs {
		ch <- c.desc
	}
	ch <- hitRateDesc
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range counterDescs {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.load(m)))
	}
	ch <- prometheus.MustNewConstMetric(hitRateDesc, prometheus.GaugeValue, m.GetCacheHitRate())
}
