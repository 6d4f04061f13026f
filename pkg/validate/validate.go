// Package validate cleans raw interval sequences and reports continuity gaps.
package validate

import (
	"sort"
	"time"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

// Clean drops malformed intervals, removes duplicates keyed by
// (interval_start, interval_end) with the first occurrence winning, and
// returns the remainder sorted by start time.
func Clean(intervals []meter.Interval) []meter.Interval {
	type key struct {
		start, end time.Time
	}
	seen := make(map[key]bool, len(intervals))
	out := make([]meter.Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Valid() {
			continue
		}
		k := key{iv.Start, iv.End}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Continuity summarizes slot coverage over the span of a cleaned sequence.
type Continuity struct {
	Expected int
	Actual   int

	// Missing holds the start of every expected slot with no covering
	// interval, in ascending order.
	Missing []time.Time
}

// MissingCount returns the number of missing slots.
func (c Continuity) MissingCount() int { return len(c.Missing) }

// CheckContinuity computes the expected fixed-granularity slots spanning
// [min(start), max(end)) and reports those not covered by any interval.
// A quality signal only; gaps never block writing.
func CheckContinuity(intervals []meter.Interval, granularity time.Duration) Continuity {
	if len(intervals) == 0 || granularity <= 0 {
		return Continuity{}
	}

	span := spanOf(intervals)
	covered := make(map[time.Time]bool)
	for _, iv := range intervals {
		for slot := iv.Start.Truncate(granularity); slot.Before(iv.End); slot = slot.Add(granularity) {
			covered[slot] = true
		}
	}

	c := Continuity{Actual: len(intervals)}
	for slot := span.start; slot.Before(span.end); slot = slot.Add(granularity) {
		c.Expected++
		if !covered[slot] {
			c.Missing = append(c.Missing, slot)
		}
	}
	return c
}

type span struct {
	start, end time.Time
}

// spanOf returns the [min(start), max(end)) span of a non-empty sequence.
func spanOf(intervals []meter.Interval) span {
	s := span{start: intervals[0].Start, end: intervals[0].End}
	for _, iv := range intervals[1:] {
		if iv.Start.Before(s.start) {
			s.start = iv.Start
		}
		if iv.End.After(s.end) {
			s.end = iv.End
		}
	}
	return s
}
