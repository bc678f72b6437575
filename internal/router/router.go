// Package router implements the central fan-in/fan-out: it consumes the
// merged line stream from every Stage1 child and delivers each line, whole,
// to the correct Stage2 child's stdin.
//
// Generalized from the teacher's Dispatcher (internal/agent/dispatcher.go),
// which fans a single producer out round-robin across N ring-buffered
// network streams. Here there are many producers (one Stage1 reader
// goroutine per mapper child) and the destination is chosen by
// partition.Partitioner instead of round-robin; there is no ring buffer,
// retry, or resume, because backpressure comes straight from the blocking
// OS pipe to each folder child's stdin (spec.md §4.4, §9).
package router

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/vlad17/slb/internal/partition"
)

// Counters is the set of atomics the Router updates on its hot path. All
// fields must only be touched through sync/atomic; see statsreporter.
type Counters interface {
	AddLine(shard int, n int)
}

// Router owns one mutex-guarded buffered writer per Stage2 child.
type Router struct {
	part    partition.Partitioner
	writers []*shardWriter
	stats   Counters
}

type shardWriter struct {
	mu  sync.Mutex
	w   *bufio.Writer
	raw io.WriteCloser
}

// New builds a Router over stdins, one per Stage2 shard, each wrapped in a
// buffered writer of at least bufSize bytes (spec.md §5). stats may be nil.
func New(part partition.Partitioner, stdins []io.WriteCloser, bufSize int, stats Counters) *Router {
	if bufSize < 1 {
		bufSize = 64 * 1024
	}
	writers := make([]*shardWriter, len(stdins))
	for i, w := range stdins {
		writers[i] = &shardWriter{w: bufio.NewWriterSize(w, bufSize), raw: w}
	}
	return &Router{part: part, writers: writers, stats: stats}
}

// Route computes line's shard and writes it whole to that shard's child
// stdin. The per-shard lock is held across the single Write call, so two
// lines destined for the same shard are never interleaved, and lines
// destined for different shards never contend with each other.
//
// A line missing its trailing '\n' (only possible for the last line of a
// Stage1 child's output, e.g. when the source file itself doesn't end in
// one) gets one synthesized before it's written, so every line ever written
// to a shard ends in '\n'.
func (r *Router) Route(line []byte) error {
	key := partition.Key(line)
	idx := r.part.Shard(key)
	sw := r.writers[idx]

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append([]byte(nil), line...), '\n')
	}

	sw.mu.Lock()
	_, err := sw.w.Write(line)
	sw.mu.Unlock()

	if err != nil {
		return fmt.Errorf("routing line to shard %d: %w", idx, err)
	}
	if r.stats != nil {
		r.stats.AddLine(idx, len(line))
	}
	return nil
}

// CloseAll flushes and closes every shard's stdin, in shard order, returning
// the first error encountered (closing the rest regardless, so a stuck
// shard doesn't leave the others' pipes open past shutdown).
func (r *Router) CloseAll() error {
	var firstErr error
	for i, sw := range r.writers {
		sw.mu.Lock()
		err := sw.w.Flush()
		sw.mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flushing shard %d stdin: %w", i, err)
		}
		if err := sw.raw.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing shard %d stdin: %w", i, err)
		}
	}
	return firstErr
}
