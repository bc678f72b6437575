package config

import (
	"testing"
	"time"
)

func TestNewRequiresFolder(t *testing.T) {
	_, err := New("", "", "", "", 1, 1, 0, time.Second, "info", "text")
	if err == nil {
		t.Fatal("expected error when --folder is missing")
	}
}

func TestNewResolvesDefaults(t *testing.T) {
	cfg, err := New("", "wc -l", "", "", 0, 0, 0, 0, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mapper != "cat" {
		t.Errorf("expected mapper to default to cat, got %q", cfg.Mapper)
	}
	if cfg.MapperThreads < 1 {
		t.Errorf("expected mapper threads to resolve to >= 1, got %d", cfg.MapperThreads)
	}
	if cfg.FolderThreads < 1 {
		t.Errorf("expected folder threads to resolve to >= 1, got %d", cfg.FolderThreads)
	}
	if cfg.BufSize != DefaultBufSize {
		t.Errorf("expected default bufsize %d, got %d", DefaultBufSize, cfg.BufSize)
	}
}

func TestNewRejectsMissingInFile(t *testing.T) {
	_, err := New("cat", "cat", "/no/such/file/slb-test", "", 1, 1, 0, 0, "", "")
	if err == nil {
		t.Fatal("expected error for missing --infile")
	}
}

func TestNewRejectsBadOutPrefixDir(t *testing.T) {
	_, err := New("cat", "cat", "", "/no/such/dir/out-", 1, 1, 0, 0, "", "")
	if err == nil {
		t.Fatal("expected error for --outprefix in a nonexistent directory")
	}
}

func TestMerged(t *testing.T) {
	cfg, err := New("", "cat", "", "", 1, 1, 0, 0, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Merged() {
		t.Error("expected Merged() true when OutPrefix is empty")
	}

	cfg2, err := New("", "cat", "", "/tmp/out-", 1, 1, 0, 0, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg2.Merged() {
		t.Error("expected Merged() false when OutPrefix is set")
	}
}
