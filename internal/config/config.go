// Package config resolves and validates the slb CLI surface into a Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vlad17/slb/internal/sysinfo"
)

// DefaultBufSize is the router's per-shard write buffer size when --bufsize
// is not given, matching the 64 KiB convention used throughout the pipeline
// (line readers, chunk boundary probe). Smaller explicit values are accepted.
const DefaultBufSize = 64 * 1024

// DefaultStatsInterval is the cadence of periodic stderr throughput reports.
const DefaultStatsInterval = 5 * time.Second

// Config holds the fully resolved, validated CLI surface (spec.md §6).
type Config struct {
	Mapper string // --mapper, default "cat" (identity)
	Folder string // --folder, required

	InFile    string // --infile, "" means stdin
	OutPrefix string // --outprefix, "" means merged to stdout

	MapperThreads int // --mapper-threads, default logical CPU count
	FolderThreads int // --folder-threads, default logical CPU count

	BufSize int // --bufsize, default 64 KiB

	StatsInterval time.Duration // --stats-interval, default 5s, 0 disables

	LogLevel  string // --log-level
	LogFormat string // --log-format
}

// New builds a Config from the parsed flag values, resolving defaults for any
// zero-valued field that has one, then validating the result.
func New(mapper, folder, inFile, outPrefix string, mapperThreads, folderThreads, bufSize int, statsInterval time.Duration, logLevel, logFormat string) (*Config, error) {
	cfg := &Config{
		Mapper:        mapper,
		Folder:        folder,
		InFile:        inFile,
		OutPrefix:     outPrefix,
		MapperThreads: mapperThreads,
		FolderThreads: folderThreads,
		BufSize:       bufSize,
		StatsInterval: statsInterval,
		LogLevel:      logLevel,
		LogFormat:     logFormat,
	}

	if cfg.Mapper == "" {
		cfg.Mapper = "cat"
	}
	if cfg.MapperThreads <= 0 {
		cfg.MapperThreads = sysinfo.LogicalCPUCount()
	}
	if cfg.FolderThreads <= 0 {
		cfg.FolderThreads = sysinfo.LogicalCPUCount()
	}
	if cfg.BufSize <= 0 {
		cfg.BufSize = DefaultBufSize
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Folder == "" {
		return fmt.Errorf("--folder is required")
	}
	if c.MapperThreads < 1 {
		return fmt.Errorf("--mapper-threads must be >= 1, got %d", c.MapperThreads)
	}
	if c.FolderThreads < 1 {
		return fmt.Errorf("--folder-threads must be >= 1, got %d", c.FolderThreads)
	}
	if c.BufSize < 1 {
		return fmt.Errorf("--bufsize must be >= 1, got %d", c.BufSize)
	}
	if c.InFile != "" {
		if _, err := os.Stat(c.InFile); err != nil {
			return fmt.Errorf("--infile %q: %w", c.InFile, err)
		}
	}
	if c.OutPrefix != "" {
		dir := filepath.Dir(c.OutPrefix)
		if info, err := os.Stat(dir); err != nil {
			return fmt.Errorf("--outprefix %q: directory %q: %w", c.OutPrefix, dir, err)
		} else if !info.IsDir() {
			return fmt.Errorf("--outprefix %q: %q is not a directory", c.OutPrefix, dir)
		}
	}
	return nil
}

// Merged reports whether shard outputs should be merged to stdout rather
// than written one-file-per-shard.
func (c *Config) Merged() bool {
	return c.OutPrefix == ""
}
