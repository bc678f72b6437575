// Package orchestrator wires ChunkReader, ChildPipe, Router, Stage1Pool and
// Stage2Pool together, enforces the ordered startup/shutdown sequence from
// spec.md §4.7, and propagates the first fault from any worker.
//
// Generalized from the teacher's top-level run shape in
// internal/agent/backup.go (RunBackup/RunAllBackups): a context-scoped run,
// a logger decorated with run-specific fields via logger.With, and an
// explicit ordered teardown — here fanned out across M+N child processes
// instead of one TLS session.
package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vlad17/slb/internal/chunkreader"
	"github.com/vlad17/slb/internal/config"
	"github.com/vlad17/slb/internal/partition"
	"github.com/vlad17/slb/internal/procpipe"
	"github.com/vlad17/slb/internal/router"
	"github.com/vlad17/slb/internal/sink"
	"github.com/vlad17/slb/internal/statsreporter"
)

// maxLineSize bounds how large a single routed line may grow. See
// DESIGN.md's Open Question decisions: scaled up from the teacher's
// maxChunkLength (32 MiB, itself a 2x margin over a configurable network
// chunk size) since lines here are whole pre-aggregation records, not fixed
// network chunks.
const maxLineSize = 64 * 1024 * 1024

// gracePeriod is how long the orchestrator waits for children to exit on
// their own after a fault before sending SIGKILL (spec.md §5 "Cancellation").
const gracePeriod = 10 * time.Second

// Orchestrator runs one end-to-end pipeline invocation.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New builds an Orchestrator for cfg.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, logger: logger}
}

// Run executes the pipeline to completion (or to its first fault) and
// returns nil on a fully clean run. A non-nil error always corresponds to a
// non-zero process exit (spec.md §6).
func (o *Orchestrator) Run(ctx context.Context) error {
	cfg := o.cfg
	logger := o.logger
	fb := newFaultBox()

	counters := statsreporter.NewCounters(cfg.FolderThreads)
	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go statsreporter.New(counters, cfg.StatsInterval, logger).Run(reporterCtx)

	// --- Stage2: open sinks, spawn folder children ---
	sinks, err := sink.Open(cfg.OutPrefix, cfg.FolderThreads)
	if err != nil {
		return &Fault{Stage: "output", Kind: KindOutputIO, Err: err}
	}

	stage2, err := spawnPool("stage2", cfg.Folder, cfg.FolderThreads, logger)
	if err != nil {
		closeSinks(sinks)
		return &Fault{Stage: "stage2", Command: cfg.Folder, Kind: KindSpawnFailure, Err: err}
	}

	stage2Stdins := make([]io.WriteCloser, len(stage2))
	for i, c := range stage2 {
		stage2Stdins[i] = c.Stdin
	}
	rt := router.New(partition.New(cfg.FolderThreads), stage2Stdins, cfg.BufSize, counters)

	var stage2WG sync.WaitGroup
	for i, c := range stage2 {
		stage2WG.Add(1)
		go func(i int, c *procpipe.Child) {
			defer stage2WG.Done()
			if err := copyLines(sinks[i], c.Stdout); err != nil {
				fb.Report(&Fault{Stage: "stage2", Command: c.Command, Kind: KindOutputIO, Err: err})
			}
		}(i, c)
	}

	// --- Stage1: plan chunks, spawn mapper children ---
	chunkSet, err := chunkreader.Open(cfg.InFile, cfg.MapperThreads)
	if err != nil {
		fb.Report(&Fault{Stage: "input", Kind: KindInputIO, Err: err})
		unwindAndReap(fb, nil, stage2, rt, &sync.WaitGroup{}, &stage2WG)
		if cerr := closeSinks(sinks); cerr != nil {
			fb.Report(&Fault{Stage: "output", Kind: KindOutputIO, Err: cerr})
		}
		return fb.Fault()
	}
	defer chunkSet.Close()

	m := chunkSet.Count()
	stage1, err := spawnPool("stage1", cfg.Mapper, m, logger)
	if err != nil {
		fb.Report(&Fault{Stage: "stage1", Command: cfg.Mapper, Kind: KindSpawnFailure, Err: err})
		unwindAndReap(fb, nil, stage2, rt, &sync.WaitGroup{}, &stage2WG)
		if cerr := closeSinks(sinks); cerr != nil {
			fb.Report(&Fault{Stage: "output", Kind: KindOutputIO, Err: cerr})
		}
		return fb.Fault()
	}

	readers := chunkSet.Readers()

	var stage1WG sync.WaitGroup
	for i, c := range stage1 {
		i, c := i, c
		stage1WG.Add(2)
		go func() {
			defer stage1WG.Done()
			if _, err := io.Copy(c.Stdin, readers[i]); err != nil {
				fb.Report(&Fault{Stage: "stage1", Command: c.Command, Kind: KindInputIO, Err: err})
			}
			c.CloseStdin()
		}()
		go func() {
			defer stage1WG.Done()
			if err := readAndRoute(c.Stdout, rt); err != nil {
				fb.Report(&Fault{Stage: "stage1", Command: c.Command, Kind: KindChildIO, Err: err})
			}
		}()
	}

	// Watch for cancellation (signal) or any fault, and unwind early so a
	// slow child doesn't hang the whole pipeline past its grace period.
	allDone := make(chan struct{})
	var unwindOnce sync.Once
	unwind := func() {
		unwindOnce.Do(func() {
			for _, c := range stage1 {
				c.CloseStdin()
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			fb.Report(&Fault{Stage: "signal", Kind: KindCanceled, Err: ctx.Err()})
		case <-fb.Done():
		}
		unwind()
		select {
		case <-allDone:
		case <-time.After(gracePeriod):
			logger.Error("grace period elapsed, killing remaining children")
			procpipe.KillAll(append(append([]*procpipe.Child{}, stage1...), stage2...))
		}
	}()

	stage1WG.Wait()
	// A flush/close failure here is typically a folder child that already
	// exited; it is reported only after the children are reaped, so that
	// child's non-zero exit (which names its command) is the fault recorded.
	closeErr := rt.CloseAll()
	stage2WG.Wait()

	for _, c := range stage1 {
		if err := c.Wait(); err != nil {
			fb.Report(&Fault{Stage: "stage1", Command: c.Command, Kind: KindChildExit, Err: err})
		}
	}
	for _, c := range stage2 {
		if err := c.Wait(); err != nil {
			fb.Report(&Fault{Stage: "stage2", Command: c.Command, Kind: KindChildExit, Err: err})
		}
	}
	if closeErr != nil {
		fb.Report(&Fault{Stage: "router", Kind: KindChildIO, Err: closeErr})
	}
	close(allDone)

	if err := closeSinks(sinks); err != nil {
		fb.Report(&Fault{Stage: "output", Kind: KindOutputIO, Err: err})
	}

	if f := fb.Fault(); f != nil {
		logger.Error("pipeline failed", "stage", f.Stage, "command", f.Command, "kind", f.Kind, "error", f.Err)
		return f
	}
	return nil
}

// spawnPool spawns n copies of command under the given stage label,
// tearing down any already-spawned children on the first failure (no
// partial pools left dangling, spec.md §7).
func spawnPool(stage, command string, n int, logger *slog.Logger) ([]*procpipe.Child, error) {
	children := make([]*procpipe.Child, 0, n)
	for i := 0; i < n; i++ {
		c, err := procpipe.Spawn(stage, command, os.Stderr)
		if err != nil {
			for _, existing := range children {
				existing.Kill()
				existing.Wait()
			}
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}

// readAndRoute reads whole lines from r (a Stage1 child's stdout) and routes
// each one.
func readAndRoute(r io.Reader, rt *router.Router) error {
	return forEachLine(r, rt.Route)
}

// copyLines reads whole lines from r and writes each one, whole, to w. Used
// for Stage2's output copier instead of io.Copy: when --outprefix is omitted
// every shard's copier shares one mergedSink, whose mutex only makes a
// single Write call atomic. io.Copy's internal buffer has no line
// awareness, so a folder child that flushes more than one buffer's worth at
// once (anything that fully buffers non-tty stdout, e.g. awk) could have
// its copier write a partial line, lose the lock to another shard's copier,
// and produce a merged stream with lines split by another shard's bytes.
// Routing every Write call through whole-line boundaries keeps the mutex's
// per-call atomicity meaningful (spec.md §4.6, §9).
func copyLines(w io.Writer, r io.Reader) error {
	return forEachLine(r, func(line []byte) error {
		_, err := w.Write(line)
		return err
	})
}

// forEachLine reads whole lines from r, in order, and calls fn with each
// one. Lines may exceed the reader's internal buffer; readLine grows its
// accumulator rather than truncating, up to maxLineSize.
func forEachLine(r io.Reader, fn func(line []byte) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := readLine(br, maxLineSize)
		if len(line) > 0 {
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// readLine reads one line (including its trailing '\n', if any) from br,
// growing its accumulator across ErrBufferFull retries rather than
// truncating. Returns io.EOF only once there is truly nothing left to
// return; a final partial line (no trailing '\n') is returned with a nil
// error so the caller processes it, and io.EOF follows on the next call.
func readLine(br *bufio.Reader, maxSize int) ([]byte, error) {
	var line []byte
	for {
		frag, err := br.ReadSlice('\n')
		if err == nil {
			if line == nil {
				line = frag
			} else {
				line = append(line, frag...)
			}
			if len(line) > maxSize {
				return nil, fmt.Errorf("line exceeds maximum size of %d bytes", maxSize)
			}
			return line, nil
		}
		if len(frag) > 0 {
			line = append(line, frag...)
			if len(line) > maxSize {
				return nil, fmt.Errorf("line exceeds maximum size of %d bytes", maxSize)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		// err is io.EOF (or a genuine read error): hand back whatever
		// partial line was accumulated, if any.
		if len(line) > 0 {
			return line, nil
		}
		return nil, err
	}
}

func closeSinks(sinks []sink.Sink) error {
	seen := make(map[sink.Sink]bool, len(sinks))
	var firstErr error
	for _, s := range sinks {
		if seen[s] {
			continue
		}
		seen[s] = true
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// unwindAndReap is used on the two early-failure paths (input planning,
// stage1 spawn) where stage2 is already up and running but stage1 never
// got off the ground: it closes stage2's stdins through the router so the
// folder children see EOF, waits for their output copiers, and reaps them.
func unwindAndReap(fb *faultBox, stage1 []*procpipe.Child, stage2 []*procpipe.Child, rt *router.Router, stage1WG, stage2WG *sync.WaitGroup) {
	for _, c := range stage1 {
		c.CloseStdin()
	}
	stage1WG.Wait()
	if err := rt.CloseAll(); err != nil {
		fb.Report(&Fault{Stage: "router", Kind: KindChildIO, Err: err})
	}
	stage2WG.Wait()
	for _, c := range stage2 {
		if err := c.Wait(); err != nil {
			fb.Report(&Fault{Stage: "stage2", Command: c.Command, Kind: KindChildExit, Err: err})
		}
	}
}
