// Package telemetry carries structured per-meter counters and the run
// summary delivered to the telemetry sink.
package telemetry

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MeterStatus is the terminal outcome of one meter's pipeline in a run.
type MeterStatus string

const (
	StatusSucceeded MeterStatus = "succeeded"
	StatusSkipped   MeterStatus = "skipped"
	StatusFailed    MeterStatus = "failed"
)

// MeterReport is the per-meter counter set.
type MeterReport struct {
	Meter  string      `json:"meter"`
	Kind   string      `json:"kind"`
	Status MeterStatus `json:"status"`

	// Stage is the pipeline stage the meter ended in.
	Stage  string `json:"stage"`
	Reason string `json:"reason,omitempty"`

	WindowStart time.Time `json:"window_start,omitempty"`
	WindowEnd   time.Time `json:"window_end,omitempty"`

	RowsFetched    int `json:"rows_fetched"`
	RowsWritten    int `json:"rows_written"`
	MissingSlots   int `json:"missing_slots"`
	UnmatchedRates int `json:"unmatched_rates"`
	CostRows       int `json:"cost_rows"`

	// CostSkipped is set when tariff resolution failed and only the raw
	// path ran.
	CostSkipped bool `json:"cost_skipped,omitempty"`

	// WriteFailure marks failures caused by lake writes; when every meter
	// in a run fails this way the storage itself is considered down.
	WriteFailure bool `json:"-"`

	Bookmark time.Time `json:"bookmark,omitempty"`
}

// RunSummary is the user-visible outcome of one run.
type RunSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Meters     []MeterReport `json:"meters"`
}

// Add folds a meter report into the summary tallies.
func (s *RunSummary) Add(r MeterReport) {
	s.Meters = append(s.Meters, r)
	switch r.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Sink receives run telemetry.
type Sink interface {
	RunCompleted(RunSummary)
}

// LogSink emits telemetry as structured log records.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) RunCompleted(sum RunSummary) {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	for _, m := range sum.Meters {
		fields := logrus.Fields{
			"meter":  m.Meter,
			"kind":   m.Kind,
			"status": m.Status,
			"stage":  m.Stage,
		}
		if m.Status == StatusFailed {
			fields["reason"] = m.Reason
			log.WithFields(fields).Error("meter run failed")
			continue
		}
		fields["rows_written"] = m.RowsWritten
		fields["missing_slots"] = m.MissingSlots
		fields["unmatched_rates"] = m.UnmatchedRates
		fields["cost_rows"] = m.CostRows
		log.WithFields(fields).Info("meter run finished")
	}
	log.WithFields(logrus.Fields{
		"succeeded": sum.Succeeded,
		"skipped":   sum.Skipped,
		"failed":    sum.Failed,
		"duration":  sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond).String(),
	}).Info("run completed")
}
