package utils

import (
	"testing"
	"time"
)

func TestTimer_Elapsed(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	elapsed := timer.Elapsed()
	if elapsed < 10*time.Millisecond {
		t.Errorf("expected at least 10ms elapsed, got %v", elapsed)
	}
}

func TestTimer_ElapsedSeconds(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)

	seconds := timer.ElapsedSeconds()
	if seconds <= 0 {
		t.Errorf("expected positive seconds, got %f", seconds)
	}
	if seconds > 5 {
		t.Errorf("elapsed seconds implausibly large: %f", seconds)
	}
}
