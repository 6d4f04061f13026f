package lake

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
)

const (
	putAttempts = 3
	putBackoff  = 250 * time.Millisecond
)

// WriteStats summarizes one logical write across its date partitions.
type WriteStats struct {
	Rows       int
	Partitions int

	// Unchanged counts partitions whose encoded content matched what is
	// already stored; those are not rewritten.
	Unchanged int
}

// Writer produces date-partitioned parquet objects. A partition's content is
// a pure function of the rows supplied for that date, so re-running an
// overlapping window replaces partitions with identical bytes and the write
// is idempotent.
type Writer struct {
	store ObjectStore
	log   logrus.FieldLogger
}

// NewWriter returns a writer over store.
func NewWriter(store ObjectStore, log logrus.FieldLogger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{store: store, log: log}
}

// WriteConsumption writes the raw consumption partitions for m. Intervals
// are grouped into dates by their interval_end.
func (w *Writer) WriteConsumption(ctx context.Context, m meter.Meter, intervals []meter.Interval) (WriteStats, error) {
	byDate := make(map[string][]ConsumptionRow)
	for _, iv := range intervals {
		row := ConsumptionRow{
			Kind:          string(m.Kind),
			MPANOrMPRN:    m.MPANOrMPRN,
			Serial:        m.Serial,
			IntervalStart: iv.Start.UTC(),
			IntervalEnd:   iv.End.UTC(),
			Consumption:   iv.Consumption,
		}
		key := iv.End.UTC().Format(dateLayout)
		byDate[key] = append(byDate[key], row)
	}

	stats := WriteStats{Rows: len(intervals)}
	for _, date := range sortedKeys(byDate) {
		day, _ := time.Parse(dateLayout, date)
		unchanged, err := writePartition(ctx, w, ConsumptionPartition(m, day), byDate[date])
		if err != nil {
			return stats, err
		}
		stats.Partitions++
		if unchanged {
			stats.Unchanged++
		}
	}
	return stats, nil
}

// WriteRates writes rate partitions grouped into dates by valid_from.
func (w *Writer) WriteRates(ctx context.Context, rows []RateRow) (WriteStats, error) {
	byDate := make(map[string][]RateRow)
	for _, r := range rows {
		key := r.ValidFrom.UTC().Format(dateLayout)
		byDate[key] = append(byDate[key], r)
	}

	stats := WriteStats{Rows: len(rows)}
	for _, date := range sortedKeys(byDate) {
		day, _ := time.Parse(dateLayout, date)
		group := byDate[date]
		first := group[0]
		path := RatesPartition(meter.Kind(first.Kind), first.ProductCode, first.TariffCode, day)
		unchanged, err := writePartition(ctx, w, path, group)
		if err != nil {
			return stats, err
		}
		stats.Partitions++
		if unchanged {
			stats.Unchanged++
		}
	}
	return stats, nil
}

// WriteCost writes costed consumption partitions for m, grouped into dates
// by interval_end to mirror the raw layout.
func (w *Writer) WriteCost(ctx context.Context, m meter.Meter, rows []CostRow) (WriteStats, error) {
	byDate := make(map[string][]CostRow)
	for _, r := range rows {
		key := r.IntervalEnd.UTC().Format(dateLayout)
		byDate[key] = append(byDate[key], r)
	}

	stats := WriteStats{Rows: len(rows)}
	for _, date := range sortedKeys(byDate) {
		day, _ := time.Parse(dateLayout, date)
		unchanged, err := writePartition(ctx, w, CostPartition(m, day), byDate[date])
		if err != nil {
			return stats, err
		}
		stats.Partitions++
		if unchanged {
			stats.Unchanged++
		}
	}
	return stats, nil
}

// writePartition encodes rows and replaces the partition at path. When the
// encoded bytes hash to the same digest as the stored object the write is
// skipped; the partition content is already what it would become.
func writePartition[T any](ctx context.Context, w *Writer, path string, rows []T) (unchanged bool, err error) {
	data, err := encodeParquet(rows)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", path, err)
	}

	digest := xxhash.Sum64(data)
	if existing, err := w.store.Get(ctx, path); err == nil && xxhash.Sum64(existing) == digest {
		w.log.WithFields(logrus.Fields{"path": path, "digest": fmt.Sprintf("%016x", digest)}).
			Debug("partition unchanged, skipping write")
		return true, nil
	}

	if err := putWithRetry(ctx, w.store, path, data); err != nil {
		return false, err
	}
	w.log.WithFields(logrus.Fields{"path": path, "rows": len(rows), "bytes": len(data),
		"digest": fmt.Sprintf("%016x", digest)}).Debug("partition written")
	return false, nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := new(bytes.Buffer)
	pw := parquet.NewGenericWriter[T](buf)
	if _, err := pw.Write(rows); err != nil {
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteError is a storage write that kept failing after retries. The
// orchestrator uses it to tell a single meter's storage trouble apart from
// storage-wide unavailability.
type WriteError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("lake: write %s failed after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// putWithRetry retries storage writes; a persistently failing put aborts the
// meter's run without committing state.
func putWithRetry(ctx context.Context, store ObjectStore, path string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt < putAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(putBackoff * time.Duration(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		if lastErr = store.Put(ctx, path, data); lastErr == nil {
			return nil
		}
	}
	return &WriteError{Path: path, Attempts: putAttempts, Err: lastErr}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
