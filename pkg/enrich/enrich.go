// Package enrich computes per-interval cost by joining validated consumption
// against tariff rates and writes the costed partitions.
package enrich

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
	"github.com/chriscoveyduck/octopus2adls/pkg/rates"
)

// Result summarizes one enrichment pass.
type Result struct {
	Rows      int
	Matched   int
	Unmatched int
	Write     lake.WriteStats
}

// Enricher writes costed consumption partitions.
type Enricher struct {
	writer *lake.Writer
	log    logrus.FieldLogger
}

// New returns an enricher writing through w.
func New(w *lake.Writer, log logrus.FieldLogger) *Enricher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Enricher{writer: w, log: log}
}

// Enrich matches each interval to the rate in force at its start, computes
// cost = consumption * unit price, and writes the costed partitions.
// Intervals with no matching rate are written with null cost and counted;
// that is a quality signal, never a failure.
func (e *Enricher) Enrich(ctx context.Context, m meter.Meter, intervals []meter.Interval, tariffCode string, joiner *rates.Joiner) (Result, error) {
	res := Result{Rows: len(intervals)}
	rows := make([]lake.CostRow, 0, len(intervals))
	for _, iv := range intervals {
		row := lake.CostRow{
			Kind:          string(m.Kind),
			MPANOrMPRN:    m.MPANOrMPRN,
			Serial:        m.Serial,
			IntervalStart: iv.Start.UTC(),
			IntervalEnd:   iv.End.UTC(),
			Consumption:   iv.Consumption,
			TariffCode:    tariffCode,
		}

		if rate, ok := joiner.Match(iv.Start); ok {
			unit := rate.UnitPrice()
			c, err := cost(iv.Consumption, unit)
			if err != nil {
				return res, fmt.Errorf("cost for interval %s: %w", iv.Start, err)
			}
			row.UnitRate = &unit
			row.Cost = &c
			res.Matched++
		} else {
			res.Unmatched++
		}
		rows = append(rows, row)
	}

	if res.Unmatched > 0 {
		e.log.WithFields(logrus.Fields{"meter": m.StateKey(), "unmatched": res.Unmatched}).
			Warn("intervals with no matching rate, cost left unset")
	}

	stats, err := e.writer.WriteCost(ctx, m, rows)
	if err != nil {
		return res, err
	}
	res.Write = stats
	return res, nil
}
