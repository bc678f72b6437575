package sysinfo

import "testing"

func TestLogicalCPUCountPositive(t *testing.T) {
	n := LogicalCPUCount()
	if n < 1 {
		t.Fatalf("expected logical CPU count >= 1, got %d", n)
	}
}

func TestSampleDoesNotPanic(t *testing.T) {
	snap := Sample()
	if snap.CPUPercent < 0 || snap.MemoryPercent < 0 {
		t.Errorf("expected non-negative percentages, got %+v", snap)
	}
}
