package orchestrator

import (
	"fmt"
	"sync"
)

// Kind names the category of a Fault (spec.md §7).
type Kind string

const (
	KindInputIO      Kind = "input_io"
	KindSpawnFailure Kind = "spawn_failure"
	KindChildIO      Kind = "child_io"
	KindChildExit    Kind = "child_exit"
	KindOutputIO     Kind = "output_io"
	KindCanceled     Kind = "canceled"
)

// Fault names the stage and command responsible for an unrecoverable
// condition, so the orchestrator's final diagnostic can point at it.
type Fault struct {
	Stage   string // "stage1", "stage2", "input", "output", "router", "signal"
	Command string // the sh -c command, if any
	Kind    Kind
	Err     error
}

func (f *Fault) Error() string {
	if f.Command != "" {
		return fmt.Sprintf("%s[%s]: %s: %v", f.Stage, f.Command, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Stage, f.Kind, f.Err)
}

// faultBox holds the first Fault reported across every orchestrator
// goroutine. Mirrors the teacher's "first error wins, rest dropped"
// convention (internal/agent/dispatcher.go's per-stream senderErr
// channels), generalized to one process-wide fault since there's no
// per-stream resume here to react to individually.
type faultBox struct {
	once  sync.Once
	fault *Fault
	ready chan struct{}
}

func newFaultBox() *faultBox {
	return &faultBox{ready: make(chan struct{})}
}

// Report records f if it's the first fault seen; later calls are no-ops.
// Returns true if this call's fault is the one that was recorded.
func (b *faultBox) Report(f *Fault) bool {
	won := false
	b.once.Do(func() {
		b.fault = f
		won = true
		close(b.ready)
	})
	return won
}

// Done returns a channel closed the moment the first fault is reported.
func (b *faultBox) Done() <-chan struct{} {
	return b.ready
}

// Fault returns the recorded fault, or nil if none was ever reported.
func (b *faultBox) Fault() *Fault {
	select {
	case <-b.ready:
		return b.fault
	default:
		return nil
	}
}
