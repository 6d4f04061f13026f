// Package plan computes the half-open fetch window for a meter.
package plan

import (
	"time"
)

// Window is a half-open [Start, End) fetch horizon.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Plan computes the window to request for one meter.
//
// End is now minus safetyLag, floored to the last fully completed interval
// boundary. Start is the stored bookmark when present, otherwise now minus
// bootstrapDays. The second return is false when the meter has nothing to
// fetch this run (a no-op, not an error).
func Plan(bookmark time.Time, hasBookmark bool, now time.Time, safetyLag time.Duration, bootstrapDays int, granularity time.Duration) (Window, bool) {
	end := now.UTC().Add(-safetyLag).Truncate(granularity)

	var start time.Time
	if hasBookmark {
		start = bookmark.UTC()
	} else {
		start = now.UTC().AddDate(0, 0, -bootstrapDays)
	}

	if !start.Before(end) {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}
