package validate

import (
	"testing"
	"time"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func iv(startMin, endMin int, consumption float64) meter.Interval {
	return meter.Interval{
		Start:       base.Add(time.Duration(startMin) * time.Minute),
		End:         base.Add(time.Duration(endMin) * time.Minute),
		Consumption: consumption,
	}
}

func TestClean_Dedup(t *testing.T) {
	out := Clean([]meter.Interval{iv(0, 30, 0.5), iv(0, 30, 0.9), iv(30, 60, 0.7)})
	if len(out) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(out))
	}
	// First occurrence wins.
	if out[0].Consumption != 0.5 {
		t.Errorf("expected first occurrence to win, got consumption %v", out[0].Consumption)
	}
	if !out[1].Start.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("unexpected second interval start %v", out[1].Start)
	}
}

func TestClean_SortsAndDropsInvalid(t *testing.T) {
	out := Clean([]meter.Interval{
		iv(60, 90, 1.0),
		iv(0, 30, 2.0),
		iv(30, 30, 3.0), // zero duration, dropped
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(out))
	}
	if !out[0].Start.Before(out[1].Start) {
		t.Error("expected intervals sorted by start")
	}
}

func TestCheckContinuity_ReportsMissingSlots(t *testing.T) {
	// Coverage 00:00-01:00 and 02:00-02:30 at 30-minute granularity:
	// slots 01:00-01:30 and 01:30-02:00 are missing.
	intervals := Clean([]meter.Interval{iv(0, 30, 1), iv(30, 60, 1), iv(120, 150, 1)})
	c := CheckContinuity(intervals, 30*time.Minute)

	if c.Expected != 5 {
		t.Errorf("expected 5 slots, got %d", c.Expected)
	}
	if c.MissingCount() != 2 {
		t.Fatalf("expected 2 missing slots, got %d", c.MissingCount())
	}
	want := []time.Time{base.Add(60 * time.Minute), base.Add(90 * time.Minute)}
	for i, slot := range c.Missing {
		if !slot.Equal(want[i]) {
			t.Errorf("missing[%d] = %v, want %v", i, slot, want[i])
		}
	}
}

func TestCheckContinuity_CoversMultiSlotIntervals(t *testing.T) {
	// One hourly interval covers two 30-minute slots.
	c := CheckContinuity([]meter.Interval{iv(0, 60, 1)}, 30*time.Minute)
	if c.MissingCount() != 0 {
		t.Errorf("expected no missing slots, got %v", c.Missing)
	}
}

func TestCheckContinuity_Empty(t *testing.T) {
	c := CheckContinuity(nil, 30*time.Minute)
	if c.Expected != 0 || c.MissingCount() != 0 {
		t.Errorf("expected empty continuity, got %+v", c)
	}
}
