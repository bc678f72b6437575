// Package sink implements the Stage2 output sinks: one file per shard under
// an --outprefix, or a single mutex-serialized writer over stdout when
// --outprefix is omitted.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Sink is the destination a folder child's stdout is copied into.
type Sink interface {
	io.Writer
	// Close flushes any buffered bytes and releases the underlying
	// resource (the file, for a file sink; a no-op for the shared stdout
	// sink, since os.Stdout isn't ours to close).
	Close() error
}

// Open returns one Sink per shard: either a set of independent per-shard
// files at "<outprefix><shard_id>", or n handles onto one shared,
// mutex-serialized stdout writer.
func Open(outPrefix string, n int) ([]Sink, error) {
	if outPrefix == "" {
		return openMerged(n), nil
	}
	return openFiles(outPrefix, n)
}

func openFiles(outPrefix string, n int) ([]Sink, error) {
	sinks := make([]Sink, n)
	for i := 0; i < n; i++ {
		suffix := fmt.Sprintf("%d", i)
		if err := validateSuffix(suffix); err != nil {
			return nil, err
		}
		path := outPrefix + suffix
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			// Close whatever we already opened before reporting the
			// failure: no partial-success outputs (spec.md §7).
			for j := 0; j < i; j++ {
				sinks[j].Close()
			}
			return nil, fmt.Errorf("creating shard output file %q: %w", path, err)
		}
		sinks[i] = &fileSink{f: f, w: bufio.NewWriterSize(f, 64*1024)}
	}
	return sinks, nil
}

func openMerged(n int) []Sink {
	shared := &mergedSink{w: bufio.NewWriterSize(os.Stdout, 64*1024)}
	sinks := make([]Sink, n)
	for i := range sinks {
		sinks[i] = shared
	}
	return sinks
}

// fileSink is a single shard's dedicated output file.
type fileSink struct {
	f *os.File
	w *bufio.Writer
}

func (s *fileSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *fileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flushing shard output: %w", err)
	}
	return s.f.Close()
}

// mergedSink is shared by every shard's output copier when --outprefix is
// omitted: writes from different folder children must interleave only at
// whole-line granularity (spec.md §4.6, §9), so every Write is taken under
// one mutex.
type mergedSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
}

func (s *mergedSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Close flushes the shared buffer exactly once, regardless of how many of
// the n handles onto it are closed by Stage2Pool's output copiers.
func (s *mergedSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Flush()
}

// validateSuffix guards the shard-id suffix appended to --outprefix against
// producing a path outside the intended directory. ShardId is always a
// small non-negative integer formatted by fmt.Sprintf("%d", ...), so in
// practice this never fails; it exists as the same defensive boundary check
// the teacher applies to every path component before it reaches the
// filesystem.
func validateSuffix(suffix string) error {
	if suffix == "" {
		return fmt.Errorf("shard suffix cannot be empty")
	}
	if strings.ContainsAny(suffix, "/\\") {
		return fmt.Errorf("shard suffix %q contains a path separator", suffix)
	}
	if strings.ContainsRune(suffix, 0) {
		return fmt.Errorf("shard suffix %q contains a null byte", suffix)
	}
	return nil
}
