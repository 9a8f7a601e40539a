package storage

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsCreation(t *testing.T) {
	m := NewMetrics()
	require.NotNil(t, m)

	// All counters should start at 0
	assert.Zero(t, m.GetCacheHits())
	assert.Zero(t, m.GetCacheMisses())
	assert.Zero(t, m.GetCacheHitRate())
	assert.Zero(t, m.GetBucketSplits())
}

func TestCacheMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordPageEviction()

	assert.Equal(t, uint64(2), m.GetCacheHits())
	assert.Equal(t, uint64(1), m.GetCacheMisses())
	assert.Equal(t, uint64(1), m.GetPageEvictions())
	assert.InDelta(t, 2.0/3.0, m.GetCacheHitRate(), 0.01)
}

func TestHashTableMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordLookup(true)
	m.RecordLookup(false)
	m.RecordHashInsert()
	m.RecordHashRemove()
	m.RecordBucketSplit()
	m.RecordDirectoryDoubling()

	assert.Equal(t, uint64(2), m.GetHashLookups())
	assert.Equal(t, uint64(1), m.GetHashLookupHits())
	assert.Equal(t, uint64(1), m.GetHashInserts())
	assert.Equal(t, uint64(1), m.GetHashRemoves())
	assert.Equal(t, uint64(1), m.GetBucketSplits())
	assert.Equal(t, uint64(1), m.GetDirectoryDoublings())
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordReplacerAccess()
	m.RecordReplacerEviction()
	m.RecordCacheHit()
	m.RecordBucketSplit()

	m.Reset()

	assert.Zero(t, m.GetReplacerAccesses())
	assert.Zero(t, m.GetReplacerEvictions())
	assert.Zero(t, m.GetCacheHits())
	assert.Zero(t, m.GetBucketSplits())
	assert.GreaterOrEqual(t, m.GetUptime().Nanoseconds(), int64(0))
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				m.RecordCacheHit()
				m.RecordReplacerAccess()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, uint64(1000), m.GetCacheHits())
	assert.Equal(t, uint64(1000), m.GetReplacerAccesses())
}

func TestMetricsPrometheusCollector(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m))

	table := NewExtendibleHashTable[int, int](1, IdentityHasher[int](), WithMetrics(m))
	table.Insert(0, 0)
	table.Insert(1, 1)
	m.RecordCacheHit()
	m.RecordCacheMiss()

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	assert.Len(t, byName, len(counterDescs)+1)

	value := func(name string) float64 {
		mf, ok := byName[name]
		require.True(t, ok, "metric %s not exported", name)
		require.Len(t, mf.GetMetric(), 1)
		metric := mf.GetMetric()[0]
		if mf.GetType() == dto.MetricType_GAUGE {
			return metric.GetGauge().GetValue()
		}
		return metric.GetCounter().GetValue()
	}

	assert.Equal(t, 2.0, value("hexbuffer_hash_table_inserts_total"))
	assert.Equal(t, 1.0, value("hexbuffer_hash_table_bucket_splits_total"))
	assert.Equal(t, 1.0, value("hexbuffer_hash_table_directory_doublings_total"))
	assert.Equal(t, 1.0, value("hexbuffer_buffer_pool_cache_hits_total"))
	assert.Equal(t, 0.5, value("hexbuffer_buffer_pool_cache_hit_ratio"))
	assert.Equal(t, dto.MetricType_COUNTER, byName["hexbuffer_replacer_evictions_total"].GetType())
}

func TestMetricsLogMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewMetrics()
	m.RecordCacheHit()
	m.RecordBucketSplit()

	m.LogMetrics(zap.New(core))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "buffer metrics", entry.Message)

	fields := entry.ContextMap()
	pool, ok := fields["buffer_pool"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, uint64(1), pool["cache_hits"])

	hash, ok := fields["hash_table"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, uint64(1), hash["bucket_splits"])
}
