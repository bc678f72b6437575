package router

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/vlad17/slb/internal/partition"
)

// nopWriteCloser adapts a *bytes.Buffer to io.WriteCloser for tests that
// don't need a real pipe.
type nopWriteCloser struct {
	mu     sync.Mutex
	buf    *bytes.Buffer
	closed bool
}

func (n *nopWriteCloser) Write(p []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.buf.Write(p)
}

func (n *nopWriteCloser) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func newShards(n int) ([]*bytes.Buffer, []io.WriteCloser, []*nopWriteCloser) {
	bufs := make([]*bytes.Buffer, n)
	stdins := make([]io.WriteCloser, n)
	closers := make([]*nopWriteCloser, n)
	for i := 0; i < n; i++ {
		bufs[i] = &bytes.Buffer{}
		closers[i] = &nopWriteCloser{buf: bufs[i]}
		stdins[i] = closers[i]
	}
	return bufs, stdins, closers
}

func TestRouteDeliversAllSameKeyLinesToOneShard(t *testing.T) {
	const n = 4
	bufs, stdins, _ := newShards(n)

	part := partition.New(n)
	r := New(part, stdins, 64, nil)

	lines := [][]byte{
		[]byte("k1 v1\n"),
		[]byte("k2 v2\n"),
		[]byte("k1 v3\n"),
	}
	for _, l := range lines {
		if err := r.Route(l); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	if err := r.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	k1Shard := part.Shard([]byte("k1"))
	got := bufs[k1Shard].String()
	if got != "k1 v1\nk1 v3\n" {
		t.Errorf("k1 shard content = %q, want both k1 lines together in arrival order", got)
	}
}

func TestCloseAllClosesEveryShard(t *testing.T) {
	const n = 3
	_, stdins, closers := newShards(n)

	r := New(partition.New(n), stdins, 64, nil)
	if err := r.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	for i, c := range closers {
		if !c.closed {
			t.Errorf("shard %d stdin was not closed", i)
		}
	}
}

type fakeCounters struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeCounters) AddLine(shard int, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func TestRouteReportsStats(t *testing.T) {
	const n = 2
	_, stdins, _ := newShards(n)

	counters := &fakeCounters{}
	r := New(partition.New(n), stdins, 64, counters)
	if err := r.Route([]byte("k v\n")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if counters.calls != 1 {
		t.Errorf("expected 1 stats call, got %d", counters.calls)
	}
}

func TestRouteSingleShardReceivesEverything(t *testing.T) {
	bufs, stdins, _ := newShards(1)
	r := New(partition.New(1), stdins, 64, nil)

	for _, l := range [][]byte{[]byte("a\n"), []byte("b\n"), []byte("\n")} {
		if err := r.Route(l); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	r.CloseAll()

	if got := bufs[0].String(); got != "a\nb\n\n" {
		t.Errorf("got %q, want %q", got, "a\nb\n\n")
	}
}

func TestRouteSynthesizesMissingTrailingNewline(t *testing.T) {
	bufs, stdins, _ := newShards(1)
	r := New(partition.New(1), stdins, 64, nil)

	if err := r.Route([]byte("no newline here")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	r.CloseAll()

	if got := bufs[0].String(); got != "no newline here\n" {
		t.Errorf("got %q, want trailing newline synthesized", got)
	}
}
