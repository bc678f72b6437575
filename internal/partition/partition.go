// Package partition maps a line's key to a shard index.
package partition

import "github.com/cespare/xxhash/v2"

// Partitioner assigns a shard index in [0, N) to a key. Implementations must
// be deterministic within a process and safe for concurrent use by multiple
// goroutines — the Router calls Shard from every Stage1 reader goroutine.
type Partitioner interface {
	Shard(key []byte) int
}

// xxhashPartitioner is the production Partitioner: a fast, high-quality,
// non-cryptographic 64-bit hash mod N. xxhash.Sum64 has no internal state to
// lock, so Shard is naturally safe for concurrent callers.
type xxhashPartitioner struct {
	n int
}

// New returns a Partitioner over n shards. Panics if n < 1: a Router with
// zero shards has nowhere to route anything, so this is a startup-time
// programming error, not a runtime condition to recover from.
func New(n int) Partitioner {
	if n < 1 {
		panic("partition: n must be >= 1")
	}
	return &xxhashPartitioner{n: n}
}

func (p *xxhashPartitioner) Shard(key []byte) int {
	return int(xxhash.Sum64(key) % uint64(p.n))
}

// Key returns the maximal prefix of line containing no space (0x20), tab
// (0x09), or '\n' byte. The trailing newline is never part of the key,
// whether or not line still has it attached. Only space and tab delimit a
// key; every other byte, including '\r', is ordinary key content — the
// system is byte-transparent outside those two delimiters. A line with no
// delimiter before its end hashes on the whole (newline-stripped) line; an
// empty line has an empty key.
func Key(line []byte) []byte {
	for i, b := range line {
		switch b {
		case ' ', '\t', '\n':
			return line[:i]
		}
	}
	return line
}
