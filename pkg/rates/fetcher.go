package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

// Source retrieves unit rates from the upstream API.
type Source interface {
	UnitRates(ctx context.Context, productCode, tariffCode string, kind meter.Kind, start, end time.Time) ([]Rate, error)
}

// Fetcher pulls rate records for a window and persists them to rate
// partitions. Rates are accumulated in the lake across runs; nothing here
// ever deletes one.
type Fetcher struct {
	source Source
	writer *lake.Writer
	log    logrus.FieldLogger
}

// NewFetcher returns a fetcher writing through w.
func NewFetcher(source Source, w *lake.Writer, log logrus.FieldLogger) *Fetcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{source: source, writer: w, log: log}
}

// Fetch retrieves rates overlapping [start, end), deduplicates them by
// validity window and persists the result. The returned slice is sorted by
// ValidFrom, ready for a Joiner.
func (f *Fetcher) Fetch(ctx context.Context, productCode, tariffCode string, kind meter.Kind, start, end time.Time) ([]Rate, error) {
	fetched, err := f.source.UnitRates(ctx, productCode, tariffCode, kind, start, end)
	if err != nil {
		return nil, err
	}
	deduped := Dedup(fetched)

	if len(deduped) > 0 {
		if _, err := f.writer.WriteRates(ctx, Rows(deduped)); err != nil {
			return nil, fmt.Errorf("persist rates %s/%s: %w", productCode, tariffCode, err)
		}
	}
	f.log.WithFields(logrus.Fields{"product": productCode, "tariff": tariffCode,
		"fetched": len(fetched), "kept": len(deduped)}).Debug("rates fetched")
	return deduped, nil
}

// Rows converts rates to their parquet representation.
func Rows(rs []Rate) []lake.RateRow {
	rows := make([]lake.RateRow, len(rs))
	for i, r := range rs {
		rows[i] = lake.RateRow{
			Kind:        string(r.Kind),
			ProductCode: r.ProductCode,
			TariffCode:  r.TariffCode,
			ValidFrom:   r.ValidFrom.UTC(),
			ValueIncVAT: r.ValueIncVAT,
			ValueExVAT:  r.ValueExVAT,
		}
		if r.ValidTo != nil {
			to := r.ValidTo.UTC()
			rows[i].ValidTo = &to
		}
	}
	return rows
}
