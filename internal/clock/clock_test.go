package clock

import (
	"testing"
	"time"
)

func TestNewFixed(t *testing.T) {
	instant := time.Date(2025, 5, 1, 8, 0, 0, 0, time.FixedZone("CET", 3600))

	clk := NewFixed(instant)
	if got := clk.Now(); !got.Equal(instant) {
		t.Fatalf("Now() = %v, want %v", got, instant)
	}
	if got := clk.Now(); got.Location() != time.UTC {
		t.Fatalf("Now() location = %v, want UTC", got.Location())
	}
}

func TestNewSystem(t *testing.T) {
	clk := NewSystem()

	before := time.Now().UTC().Add(-time.Minute)
	after := time.Now().UTC().Add(time.Minute)
	if got := clk.Now(); got.Before(before) || got.After(after) {
		t.Fatalf("Now() = %v, outside [%v, %v]", got, before, after)
	}
}
