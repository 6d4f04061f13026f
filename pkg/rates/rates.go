// Package rates holds tariff rate records and the rate-to-interval join used
// for cost enrichment.
package rates

import (
	"sort"
	"time"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

// Rate is a time-bounded unit price for a (product, tariff, kind). A nil
// ValidTo means the rate is open-ended: it applies from ValidFrom until
// superseded by a later rate.
type Rate struct {
	ProductCode string
	TariffCode  string
	Kind        meter.Kind
	ValidFrom   time.Time
	ValidTo     *time.Time
	ValueIncVAT float64
	ValueExVAT  float64
}

// UnitPrice returns the price used for costing: VAT-inclusive when present,
// otherwise VAT-exclusive.
func (r Rate) UnitPrice() float64 {
	if r.ValueIncVAT != 0 {
		return r.ValueIncVAT
	}
	return r.ValueExVAT
}

// Contains reports whether ts falls in [ValidFrom, ValidTo).
func (r Rate) Contains(ts time.Time) bool {
	if ts.Before(r.ValidFrom) {
		return false
	}
	return r.ValidTo == nil || ts.Before(*r.ValidTo)
}

// Dedup removes rates sharing a validity window (first occurrence wins) and
// returns the remainder sorted by ValidFrom.
func Dedup(rs []Rate) []Rate {
	type window struct {
		from   time.Time
		to     time.Time
		open   bool
		tariff string
	}
	seen := make(map[window]bool, len(rs))
	out := make([]Rate, 0, len(rs))
	for _, r := range rs {
		w := window{from: r.ValidFrom, open: r.ValidTo == nil, tariff: r.TariffCode}
		if r.ValidTo != nil {
			w.to = *r.ValidTo
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out
}
