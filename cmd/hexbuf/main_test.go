package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sibexico/hexbuffer/storage"
)

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.PoolSize = 4
	cfg.BucketSize = 1
	cfg.PageTableShards = 2

	var out bytes.Buffer
	sh, err := newShell(cfg, storage.NewMetrics(), zap.NewNop(), &out)
	require.NoError(t, err)
	return sh, &out
}

// runLine executes one shell line and returns what it printed
func runLine(sh *shell, out *bytes.Buffer, line string) (string, error) {
	out.Reset()
	err := sh.exec(strings.Fields(line))
	return out.String(), err
}

func mustRun(t *testing.T, sh *shell, out *bytes.Buffer, line string) string {
	t.Helper()
	printed, err := runLine(sh, out, line)
	require.NoError(t, err, line)
	return printed
}

func TestShellHashTableCommands(t *testing.T) {
	sh, out := newTestShell(t)

	mustRun(t, sh, out, "put a 1")
	assert.Equal(t, "1\n", mustRun(t, sh, out, "get a"))
	assert.Equal(t, "(not found)\n", mustRun(t, sh, out, "get z"))

	mustRun(t, sh, out, "put a 2")
	assert.Equal(t, "2\n", mustRun(t, sh, out, "get a"))

	assert.Equal(t, "true\n", mustRun(t, sh, out, "del a"))
	assert.Equal(t, "false\n", mustRun(t, sh, out, "del a"))

	for _, key := range []string{"a", "b", "c", "d", "e", "f"} {
		mustRun(t, sh, out, "put "+key+" v"+key)
	}
	depth := mustRun(t, sh, out, "depth")
	global := sh.table.GetGlobalDepth()
	assert.Greater(t, global, 0, "one-entry buckets must have split")
	assert.Contains(t, depth, "6 entries")
	assert.Equal(t, 1<<global, strings.Count(depth, "slot "))

	_, err := runLine(sh, out, "put a")
	assert.ErrorContains(t, err, "usage: put")
}

func TestShellReplacerCommands(t *testing.T) {
	sh, out := newTestShell(t)

	mustRun(t, sh, out, "access 1")
	mustRun(t, sh, out, "access 2")
	mustRun(t, sh, out, "access 1")
	assert.Equal(t, "0 evictable\n", mustRun(t, sh, out, "size"))

	mustRun(t, sh, out, "evictable 1")
	mustRun(t, sh, out, "evictable 2 true")
	assert.Equal(t, "2 evictable\n", mustRun(t, sh, out, "size"))

	assert.Equal(t, "history=[1 3] k-distance=2\n", mustRun(t, sh, out, "history 1"))
	assert.Equal(t, "history=[2] k-distance=+inf\n", mustRun(t, sh, out, "history 2"))
	assert.Equal(t, "frame 3 not tracked\n", mustRun(t, sh, out, "history 3"))

	// Frame 2 has a single access, so its distance is infinite
	assert.Equal(t, "evicted frame 2\n", mustRun(t, sh, out, "evict"))

	mustRun(t, sh, out, "evictable 1 false")
	assert.Equal(t, "no evictable frame\n", mustRun(t, sh, out, "evict"))

	_, err := runLine(sh, out, "evictable 1 maybe")
	assert.ErrorContains(t, err, "invalid flag")
	_, err = runLine(sh, out, "access")
	assert.ErrorContains(t, err, "missing frame id")
	_, err = runLine(sh, out, "access x")
	assert.ErrorContains(t, err, "invalid frame id")
}

func TestShellRecoversContractViolations(t *testing.T) {
	sh, out := newTestShell(t)

	_, err := runLine(sh, out, "remove 9")
	var se *storage.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, storage.ErrCodeFrameOutOfRange, se.Code)

	mustRun(t, sh, out, "access 1")
	_, err = runLine(sh, out, "remove 1")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, storage.ErrCodeFrameNotEvictable, se.Code)

	_, err = runLine(sh, out, "depth 1")
	require.NoError(t, err)

	// The shell keeps working after a recovered panic
	mustRun(t, sh, out, "evictable 1")
	mustRun(t, sh, out, "remove 1")
	assert.Equal(t, "0 evictable\n", mustRun(t, sh, out, "size"))
}

func TestShellBufferPoolCommands(t *testing.T) {
	sh, out := newTestShell(t)

	assert.Equal(t, "page 7 -> frame 0\n", mustRun(t, sh, out, "fetch 7"))
	assert.Equal(t, "page 7 -> frame 0\n", mustRun(t, sh, out, "fetch 7"))
	mustRun(t, sh, out, "unpin 7")
	mustRun(t, sh, out, "unpin 7")

	_, err := runLine(sh, out, "unpin 7")
	assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInvalidPin))
	_, err = runLine(sh, out, "unpin 99")
	assert.True(t, storage.IsErrorCode(err, storage.ErrCodePageNotFound))
	_, err = runLine(sh, out, "fetch")
	assert.ErrorContains(t, err, "missing page id")
}

func TestShellStatsSeparatesPoolFromShell(t *testing.T) {
	sh, out := newTestShell(t)

	for _, key := range []string{"a", "b", "c", "d", "e", "f"} {
		mustRun(t, sh, out, "put "+key+" 1")
	}
	mustRun(t, sh, out, "access 0")
	mustRun(t, sh, out, "fetch 1")
	mustRun(t, sh, out, "fetch 1")

	stats := mustRun(t, sh, out, "stats")
	lines := strings.Split(strings.TrimSpace(stats), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t, "pool: hits=1 misses=1 hit_rate=0.5000 evictions=0 splits=0 doublings=0", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "shell: accesses=1 evictions=0 splits="), lines[1])

	// The exported metrics only see the simulator
	assert.Equal(t, uint64(2), sh.metrics.GetReplacerAccesses())
	assert.Zero(t, sh.metrics.GetBucketSplits())
	assert.Greater(t, sh.shellMetrics.GetBucketSplits(), uint64(0))
	assert.Equal(t, uint64(1), sh.shellMetrics.GetReplacerAccesses())
}

func TestShellUnknownCommandAndHelp(t *testing.T) {
	sh, out := newTestShell(t)

	_, err := runLine(sh, out, "frob 1")
	assert.ErrorContains(t, err, `unknown command "frob"`)

	help := mustRun(t, sh, out, "HELP")
	assert.Contains(t, help, "Buffer pool simulator:")
	for _, cmd := range []string{"access", "evictable", "evict", "remove", "size", "history",
		"put", "get", "del", "depth", "fetch", "unpin", "stats"} {
		assert.Contains(t, help, "  "+cmd+" ")
	}
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("# warmup\n1 2 1 2\n3 4 5 1 2\n"), 0644))

	cfg := storage.DefaultConfig()
	cfg.PoolSize = 4
	metrics := storage.NewMetrics()

	var out bytes.Buffer
	require.NoError(t, replay(cfg, path, metrics, zap.NewNop(), &out))
	assert.Equal(t,
		"policy=lru-k k=2 frames=4 accesses=9 hits=4 misses=5 evictions=1 hit_rate=0.4444\n",
		out.String())
	assert.Equal(t, uint64(4), metrics.GetCacheHits())

	err := replay(cfg, filepath.Join(t.TempDir(), "missing.txt"), metrics, zap.NewNop(), &out)
	assert.ErrorContains(t, err, "failed to open trace")
}

func TestRunReturnsErrorsInsteadOfExiting(t *testing.T) {
	t.Setenv("HEXBUFFER_POOL_SIZE", "4")
	t.Setenv("HEXBUFFER_LOG_LEVEL", "error")

	old := *tracePath
	t.Cleanup(func() { *tracePath = old })

	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2 3 1\n"), 0644))
	*tracePath = path
	require.NoError(t, run())

	*tracePath = filepath.Join(t.TempDir(), "missing.txt")
	err := run()
	assert.ErrorContains(t, err, "replay: failed to open trace")

	t.Setenv("HEXBUFFER_POOL_SIZE", "0")
	err = run()
	assert.ErrorContains(t, err, "config:")
}
