// Package chunkreader splits a seekable input file into M newline-aligned
// byte ranges, or collapses to a single chunk for non-seekable input (stdin).
package chunkreader

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// probeReadSize bounds how much of the file the boundary probe is willing to
// buffer at once while scanning forward for the next newline.
const probeReadSize = 64 * 1024

// Chunk is a newline-aligned byte range: [Start, End) of the input file.
type Chunk struct {
	Start int64
	End   int64
}

// Set is an opened input ready to be split into chunk readers. Close must be
// called once every chunk reader returned by Readers has been fully drained.
type Set struct {
	file   *os.File // nil for stdin
	chunks []Chunk  // empty for stdin
	stdin  bool
}

// Open plans the chunking for path (or stdin if path is empty) into at most
// m chunks and returns a Set describing it. For non-seekable input, m
// collapses to 1 regardless of the requested count (spec.md §4.1).
func Open(path string, m int) (*Set, error) {
	if m < 1 {
		m = 1
	}

	if path == "" {
		return &Set{stdin: true}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input file %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting input file %q: %w", path, err)
	}

	chunks, err := planChunks(f, info.Size(), m)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Set{file: f, chunks: chunks}, nil
}

// Count returns the number of chunks this Set was actually split into (1 for
// stdin, regardless of the m requested at Open time).
func (s *Set) Count() int {
	if s.stdin {
		return 1
	}
	return len(s.chunks)
}

// Readers returns one io.Reader per chunk, in order. Each reader is backed
// by an independent io.SectionReader over the same *os.File (safe for
// concurrent reads via pread) so Stage1Pool can drain all of them in
// parallel.
func (s *Set) Readers() []io.Reader {
	if s.stdin {
		return []io.Reader{os.Stdin}
	}

	readers := make([]io.Reader, len(s.chunks))
	for i, c := range s.chunks {
		readers[i] = io.NewSectionReader(s.file, c.Start, c.End-c.Start)
	}
	return readers
}

// Close releases the underlying file, if any (a no-op for stdin).
func (s *Set) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// planChunks computes m roughly equal byte ranges over [0, size), nudging
// every interior boundary forward to just past the next newline (or to size,
// if none remains) so every chunk begins right after a newline or at offset
// 0 and ends at a newline or EOF.
func planChunks(f *os.File, size int64, m int) ([]Chunk, error) {
	if size == 0 {
		return []Chunk{{Start: 0, End: 0}}, nil
	}
	if m < 1 {
		m = 1
	}
	// A chunk count larger than the file itself is meaningless; clamp so
	// every chunk gets at least one byte to probe from.
	if int64(m) > size {
		m = int(size)
	}

	nominal := size / int64(m)
	if nominal == 0 {
		nominal = 1
	}

	chunks := make([]Chunk, 0, m)
	start := int64(0)
	for i := 0; i < m && start < size; i++ {
		var end int64
		if i == m-1 {
			end = size
		} else {
			boundary := start + nominal
			if boundary >= size {
				end = size
			} else {
				next, err := nextLineStart(f, boundary, size)
				if err != nil {
					return nil, err
				}
				end = next
			}
		}
		if end > start {
			chunks = append(chunks, Chunk{Start: start, End: end})
		}
		start = end
	}

	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{Start: 0, End: size})
	}
	return chunks, nil
}

// nextLineStart reads forward from offset and returns the offset of the
// first byte after the next '\n' (or size, if EOF arrives first without one).
func nextLineStart(f *os.File, offset, size int64) (int64, error) {
	r := bufio.NewReaderSize(io.NewSectionReader(f, offset, size-offset), probeReadSize)
	pos := offset
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return size, nil
			}
			return 0, fmt.Errorf("scanning for chunk boundary at offset %d: %w", offset, err)
		}
		pos++
		if b == '\n' {
			return pos, nil
		}
	}
}
