package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vlad17/slb/internal/config"
	"github.com/vlad17/slb/internal/logging"
	"github.com/vlad17/slb/internal/orchestrator"
)

func main() {
	mapper := flag.String("mapper", "", "shell command each input chunk is piped through (default: identity, \"cat\")")
	folder := flag.String("folder", "", "shell command each shard is piped through before being written out (required)")
	inFile := flag.String("infile", "", "input file to read and chunk (default: stdin, single chunk)")
	outPrefix := flag.String("outprefix", "", "prefix for per-shard output files \"<outprefix><shard_id>\" (default: merge to stdout)")
	mapperThreads := flag.Int("mapper-threads", 0, "number of mapper (Stage1) subprocesses (default: logical CPU count)")
	folderThreads := flag.Int("folder-threads", 0, "number of folder (Stage2) subprocesses and output shards (default: logical CPU count)")
	bufSize := flag.Int("bufsize", 0, "per-shard write buffer size in bytes (default: 64KiB)")
	statsInterval := flag.Duration("stats-interval", config.DefaultStatsInterval, "interval between throughput reports on stderr, 0 disables")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "log format: text, json")
	flag.Parse()

	logger := logging.New(*logLevel, *logFormat)

	cfg, err := config.New(*mapper, *folder, *inFile, *outPrefix, *mapperThreads, *folderThreads, *bufSize, *statsInterval, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "slb: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err = orchestrator.New(cfg, logger).Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "slb: %v\n", err)
		logger.Error("run failed", "elapsed", time.Since(start), "error", err)
		os.Exit(exitCode(err))
	}
	logger.Info("run complete", "elapsed", time.Since(start))
}

// exitCode maps a Fault's kind to a distinct process exit status so callers
// can distinguish input problems from child-process problems from output
// problems without parsing stderr (spec.md §7).
func exitCode(err error) int {
	f, ok := err.(*orchestrator.Fault)
	if !ok {
		return 1
	}
	switch f.Kind {
	case orchestrator.KindInputIO:
		return 3
	case orchestrator.KindSpawnFailure:
		return 4
	case orchestrator.KindChildIO:
		return 5
	case orchestrator.KindChildExit:
		return 6
	case orchestrator.KindOutputIO:
		return 7
	case orchestrator.KindCanceled:
		return 130
	default:
		return 1
	}
}
