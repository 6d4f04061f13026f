package rates

import (
	"sort"
	"time"
)

// Joiner matches interval timestamps to the rate in force at that moment.
// Rates are sorted once on construction; each probe is a binary search over
// ValidFrom, so joining N intervals against R rates costs O(N log R).
type Joiner struct {
	rates []Rate
}

// NewJoiner builds a joiner over rs. The slice is copied and sorted by
// ValidFrom; callers may keep mutating their copy.
func NewJoiner(rs []Rate) *Joiner {
	sorted := make([]Rate, len(rs))
	copy(sorted, rs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ValidFrom.Before(sorted[j].ValidFrom) })
	return &Joiner{rates: sorted}
}

// Len returns the number of rates held.
func (j *Joiner) Len() int { return len(j.rates) }

// Match returns the rate whose [ValidFrom, ValidTo) window contains ts.
// The second return is false when no rate applies.
func (j *Joiner) Match(ts time.Time) (Rate, bool) {
	// Index of the first rate with ValidFrom > ts; the candidate is the one
	// before it (rightmost ValidFrom <= ts).
	i := sort.Search(len(j.rates), func(i int) bool { return j.rates[i].ValidFrom.After(ts) })
	if i == 0 {
		return Rate{}, false
	}
	r := j.rates[i-1]
	if !r.Contains(ts) {
		return Rate{}, false
	}
	return r, true
}
