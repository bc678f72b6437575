// Package statsreporter periodically logs pipeline throughput and host
// resource pressure to stderr while a run is in progress. It observes the
// Router's atomic counters from the side and never touches the hot path
// itself.
//
// Generalized from the teacher's AutoScaler (internal/agent/autoscaler.go),
// which runs an identical ticker-driven "evaluate" loop but then resizes the
// active stream count. Dynamic rebalancing is an explicit Non-goal here
// (spec.md §1), so this loop only samples and logs — it never changes N.
package statsreporter

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vlad17/slb/internal/sysinfo"
)

// Counters are the atomics a Reporter samples. Router updates them on the
// hot path via AddLine; see router.Counters.
type Counters struct {
	lines      atomic.Int64
	bytes      atomic.Int64
	shardBytes []atomic.Int64
}

// NewCounters allocates a Counters for n shards.
func NewCounters(n int) *Counters {
	return &Counters{shardBytes: make([]atomic.Int64, n)}
}

// AddLine records one routed line of n bytes landing in shard.
func (c *Counters) AddLine(shard int, n int) {
	c.lines.Add(1)
	c.bytes.Add(int64(n))
	c.shardBytes[shard].Add(int64(n))
}

// Snapshot is an immutable point-in-time read of Counters.
type Snapshot struct {
	Lines      int64
	Bytes      int64
	ShardBytes []int64
}

// Sample reads the current counter values.
func (c *Counters) Sample() Snapshot {
	shardBytes := make([]int64, len(c.shardBytes))
	for i := range c.shardBytes {
		shardBytes[i] = c.shardBytes[i].Load()
	}
	return Snapshot{
		Lines:      c.lines.Load(),
		Bytes:      c.bytes.Load(),
		ShardBytes: shardBytes,
	}
}

// Reporter logs a Snapshot plus a host sysinfo.Snapshot at a fixed interval.
type Reporter struct {
	counters *Counters
	interval time.Duration
	logger   *slog.Logger
}

// New builds a Reporter. If interval <= 0, Run returns immediately without
// logging anything (the --stats-interval 0 "disabled" case).
func New(counters *Counters, interval time.Duration, logger *slog.Logger) *Reporter {
	return &Reporter{counters: counters, interval: interval, logger: logger}
}

// Run logs one snapshot every interval until ctx is canceled.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logOnce()
		}
	}
}

func (r *Reporter) logOnce() {
	snap := r.counters.Sample()
	host := sysinfo.Sample()
	r.logger.Info("pipeline stats",
		"lines_routed", snap.Lines,
		"bytes_routed", snap.Bytes,
		"shard_bytes", snap.ShardBytes,
		"cpu_percent", host.CPUPercent,
		"mem_percent", host.MemoryPercent,
	)
}
