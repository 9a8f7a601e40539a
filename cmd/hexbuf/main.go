package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sibexico/hexbuffer/storage"
)

var (
	configPath  = flag.String("config", "", "path to a JSON or YAML config file (defaults to HEXBUFFER_* env)")
	tracePath   = flag.String("trace", "", "replay a page access trace and exit")
	metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	logLevel    = flag.String("log-level", "", "override the configured log level")
)

const prompt = "hexbuf> "

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hexbuf: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := storage.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	metrics := storage.NewMetrics()
	if cfg.EnableMetrics && *metricsAddr != "" {
		serveMetrics(*metricsAddr, metrics, logger)
	}

	if *tracePath != "" {
		if err := replay(cfg, *tracePath, metrics, logger, os.Stdout); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		metrics.LogMetrics(logger)
		return nil
	}

	sh, err := newShell(cfg, metrics, logger, os.Stdout)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	return sh.run()
}

func loadConfig() (*storage.Config, error) {
	var cfg *storage.Config
	if *configPath != "" {
		loaded, err := storage.LoadConfigFromFile(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = storage.LoadConfigFromEnv()
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	return cfg, cfg.Validate()
}

func serveMetrics(addr string, metrics *storage.Metrics, logger *zap.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}

func replay(cfg *storage.Config, path string, metrics *storage.Metrics, logger *zap.Logger, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	trace, err := storage.ParseTrace(f)
	if err != nil {
		return err
	}

	sim, err := storage.NewBufferPoolSimulator(cfg, storage.WithMetrics(metrics), storage.WithLogger(logger))
	if err != nil {
		return err
	}
	result, err := sim.Replay(trace)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "policy=%s k=%d frames=%d accesses=%d hits=%d misses=%d evictions=%d hit_rate=%.4f\n",
		cfg.CacheReplacer, cfg.ReplacerK, cfg.PoolSize,
		result.Accesses, result.Hits, result.Misses, result.Evictions, result.HitRate())
	return nil
}

// shell is an interactive front end over a replacer, a string hash table
// and a buffer pool simulator built from the same config. The simulator
// reports to the exported metrics; the standalone replacer and table keep
// their own counters so shell experiments do not skew them.
type shell struct {
	cfg          *storage.Config
	replacer     *storage.LRUKReplacer
	table        *storage.ExtendibleHashTable[string, string]
	sim          *storage.BufferPoolSimulator
	metrics      *storage.Metrics
	shellMetrics *storage.Metrics
	out          io.Writer
}

func newShell(cfg *storage.Config, metrics *storage.Metrics, logger *zap.Logger, out io.Writer) (*shell, error) {
	sim, err := storage.NewBufferPoolSimulator(cfg, storage.WithMetrics(metrics), storage.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	shellMetrics := storage.NewMetrics()
	opts := []storage.Option{
		storage.WithMetrics(shellMetrics),
		storage.WithLogger(logger),
		storage.WithMaxGlobalDepth(cfg.MaxGlobalDepth),
	}
	k := cfg.ReplacerK
	if cfg.CacheReplacer == storage.ReplacerLRU {
		k = 1
	}
	return &shell{
		cfg:          cfg,
		replacer:     storage.NewLRUKReplacer(cfg.PoolSize, k, opts...),
		table:        storage.NewExtendibleHashTable[string, string](cfg.BucketSize, storage.StringHasher[string](), opts...),
		sim:          sim,
		metrics:      sim.GetMetrics(),
		shellMetrics: shellMetrics,
		out:          out,
	}, nil
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("access"),
	readline.PcItem("evictable"),
	readline.PcItem("evict"),
	readline.PcItem("remove"),
	readline.PcItem("size"),
	readline.PcItem("history"),
	readline.PcItem("put"),
	readline.PcItem("get"),
	readline.PcItem("del"),
	readline.PcItem("depth"),
	readline.PcItem("fetch"),
	readline.PcItem("unpin"),
	readline.PcItem("stats"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

func (sh *shell) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	sh.out = rl.Stdout()

	fmt.Fprintf(sh.out, "hexbuf (%s, k=%d, %d frames, bucket size %d). Type 'help' for commands.\n",
		sh.cfg.CacheReplacer, sh.replacer.GetK(), sh.cfg.PoolSize, sh.cfg.BucketSize)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if cmd := strings.ToLower(fields[0]); cmd == "exit" || cmd == "quit" {
			return nil
		}
		if err := sh.exec(fields); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// exec runs one command. Contract violations from the storage package panic;
// they are reported as errors instead of terminating the shell.
func (sh *shell) exec(fields []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = storage.RecoverStorageError(r)
		}
	}()

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "access":
		id, err := frameArg(args, 0)
		if err != nil {
			return err
		}
		sh.replacer.RecordAccess(id)
	case "evictable":
		id, err := frameArg(args, 0)
		if err != nil {
			return err
		}
		evictable := true
		if len(args) > 1 {
			if evictable, err = strconv.ParseBool(args[1]); err != nil {
				return fmt.Errorf("invalid flag %q", args[1])
			}
		}
		sh.replacer.SetEvictable(id, evictable)
	case "evict":
		if id, ok := sh.replacer.Evict(); ok {
			fmt.Fprintf(sh.out, "evicted frame %d\n", id)
		} else {
			fmt.Fprintln(sh.out, "no evictable frame")
		}
	case "remove":
		id, err := frameArg(args, 0)
		if err != nil {
			return err
		}
		sh.replacer.Remove(id)
	case "size":
		fmt.Fprintf(sh.out, "%d evictable\n", sh.replacer.Size())
	case "history":
		id, err := frameArg(args, 0)
		if err != nil {
			return err
		}
		dist, infinite, ok := sh.replacer.BackwardKDistance(id)
		switch {
		case !ok:
			fmt.Fprintf(sh.out, "frame %d not tracked\n", id)
		case infinite:
			fmt.Fprintf(sh.out, "history=%v k-distance=+inf\n", sh.replacer.History(id))
		default:
			fmt.Fprintf(sh.out, "history=%v k-distance=%d\n", sh.replacer.History(id), dist)
		}
	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		sh.table.Insert(args[0], args[1])
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		if v, ok := sh.table.Find(args[0]); ok {
			fmt.Fprintln(sh.out, v)
		} else {
			fmt.Fprintln(sh.out, "(not found)")
		}
	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <key>")
		}
		fmt.Fprintln(sh.out, sh.table.Remove(args[0]))
	case "depth":
		global := sh.table.GetGlobalDepth()
		fmt.Fprintf(sh.out, "global depth %d, %d buckets, %d entries\n", global, sh.table.GetNumBuckets(), sh.table.Len())
		for i := 0; i < 1<<global; i++ {
			fmt.Fprintf(sh.out, "  slot %d: local depth %d\n", i, sh.table.GetLocalDepth(i))
		}
	case "fetch":
		id, err := pageArg(args)
		if err != nil {
			return err
		}
		frameID, err := sh.sim.FetchPage(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "page %d -> frame %d\n", id, frameID)
	case "unpin":
		id, err := pageArg(args)
		if err != nil {
			return err
		}
		return sh.sim.UnpinPage(id)
	case "stats":
		fmt.Fprintf(sh.out, "pool: hits=%d misses=%d hit_rate=%.4f evictions=%d splits=%d doublings=%d\n",
			sh.metrics.GetCacheHits(), sh.metrics.GetCacheMisses(), sh.metrics.GetCacheHitRate(),
			sh.metrics.GetPageEvictions(), sh.metrics.GetBucketSplits(), sh.metrics.GetDirectoryDoublings())
		fmt.Fprintf(sh.out, "shell: accesses=%d evictions=%d splits=%d doublings=%d\n",
			sh.shellMetrics.GetReplacerAccesses(), sh.shellMetrics.GetReplacerEvictions(),
			sh.shellMetrics.GetBucketSplits(), sh.shellMetrics.GetDirectoryDoublings())
	case "help":
		printHelp(sh.out)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return nil
}

func frameArg(args []string, i int) (storage.FrameID, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing frame id")
	}
	id, err := strconv.ParseUint(args[i], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid frame id %q", args[i])
	}
	return storage.FrameID(id), nil
}

func pageArg(args []string) (storage.PageID, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing page id")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid page id %q", args[0])
	}
	return storage.PageID(id), nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `Replacer:
  access <frame>               record an access
  evictable <frame> [bool]     mark a frame evictable (default true)
  evict                        evict the frame with the largest k-distance
  remove <frame>               forget an evictable frame
  size                         number of evictable frames
  history <frame>              access history and backward k-distance
Hash table:
  put <key> <value>            insert or overwrite
  get <key>                    look up
  del <key>                    remove
  depth                        directory shape
Buffer pool simulator:
  fetch <page>                 pin a page into a frame
  unpin <page>                 release one pin
  stats                        pool and shell counters
exit`)
}
