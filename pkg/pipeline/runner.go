// Package pipeline drives the per-meter ingestion state machine and commits
// bookmarks. One Run processes every configured meter through plan → fetch →
// validate → write-raw → [resolve → join → write-cost] → commit, with
// per-meter isolation: a failing meter is reported and the run moves on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chriscoveyduck/octopus2adls/pkg/config"
	"github.com/chriscoveyduck/octopus2adls/pkg/enrich"
	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
	"github.com/chriscoveyduck/octopus2adls/pkg/meter"
	"github.com/chriscoveyduck/octopus2adls/pkg/octopus"
	"github.com/chriscoveyduck/octopus2adls/pkg/plan"
	"github.com/chriscoveyduck/octopus2adls/pkg/rates"
	"github.com/chriscoveyduck/octopus2adls/pkg/state"
	"github.com/chriscoveyduck/octopus2adls/pkg/tariff"
	"github.com/chriscoveyduck/octopus2adls/pkg/telemetry"
	"github.com/chriscoveyduck/octopus2adls/pkg/validate"
)

// ErrStorageUnavailable means every meter failed on storage writes: the lake
// itself is down, so the run aborts rather than burning through retries.
var ErrStorageUnavailable = errors.New("pipeline: storage unavailable, all writes failing")

// ConsumptionSource fetches interval readings for one meter.
type ConsumptionSource interface {
	Consumption(ctx context.Context, m meter.Meter, start, end time.Time) ([]meter.Interval, error)
}

// Deps wires the runner's collaborators.
type Deps struct {
	Source   ConsumptionSource
	Store    lake.ObjectStore
	Writer   *lake.Writer
	State    *state.Store
	Resolver *tariff.Resolver
	Rates    *rates.Fetcher
	Enricher *enrich.Enricher
	Sink     telemetry.Sink
	Log      logrus.FieldLogger

	// Now is the clock; defaults to time.Now. Tests pin it.
	Now func() time.Time
}

// Options adjusts a single run.
type Options struct {
	// BackfillDays, when positive, ignores stored bookmarks and replans
	// every meter that many days back.
	BackfillDays int
}

// Runner orchestrates one run over the configured meters.
type Runner struct {
	cfg  *config.Config
	deps Deps
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewRunner validates deps and returns a runner.
func NewRunner(cfg *config.Config, deps Deps) (*Runner, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: Source is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: Store is required")
	case deps.Writer == nil:
		return nil, errors.New("pipeline: Writer is required")
	case deps.State == nil:
		return nil, errors.New("pipeline: State is required")
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sink == nil {
		deps.Sink = telemetry.LogSink{Log: deps.Log}
	}
	return &Runner{cfg: cfg, deps: deps, log: deps.Log, now: deps.Now}, nil
}

// Run processes every meter under the run deadline and reports the summary
// to the telemetry sink. Meters already committed keep their bookmarks even
// when the run is cut short.
func (r *Runner) Run(ctx context.Context, opts Options) (telemetry.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	summary := telemetry.RunSummary{StartedAt: r.now()}

	owner := leaseOwner()
	if err := acquireLease(ctx, r.deps.Store, owner, r.cfg.RunTimeout+time.Minute); err != nil {
		summary.FinishedAt = r.now()
		return summary, err
	}
	defer releaseLease(context.WithoutCancel(ctx), r.deps.Store, owner)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, m := range r.cfg.Meters {
		m := m
		g.Go(func() error {
			report := r.runMeter(gctx, m, opts)
			mu.Lock()
			summary.Add(report)
			mu.Unlock()
			// Meter failures are isolated; never fail the group.
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = r.now()
	r.deps.Sink.RunCompleted(summary)

	if err := r.storageWideFailure(summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// storageWideFailure reports ErrStorageUnavailable when every meter that ran
// failed on a lake write.
func (r *Runner) storageWideFailure(summary telemetry.RunSummary) error {
	if len(summary.Meters) == 0 || summary.Failed != len(summary.Meters) {
		return nil
	}
	for _, m := range summary.Meters {
		if !m.WriteFailure {
			return nil
		}
	}
	return ErrStorageUnavailable
}

// runMeter is the per-meter state machine.
func (r *Runner) runMeter(ctx context.Context, m meter.Meter, opts Options) telemetry.MeterReport {
	log := r.log.WithFields(logrus.Fields{"meter": m.StateKey(), "kind": m.Kind})
	report := telemetry.MeterReport{Meter: m.StateKey(), Kind: string(m.Kind), Stage: string(StagePlanned)}

	fail := func(stage Stage, err error) telemetry.MeterReport {
		report.Stage = string(stage)
		report.Status = telemetry.StatusFailed
		report.Reason = err.Error()
		var we *lake.WriteError
		report.WriteFailure = errors.As(err, &we)
		if octopus.IsAuthError(err) {
			log.WithError(err).Error("authorization failure, meter skipped for this run")
		} else {
			log.WithError(err).Error("meter pipeline failed")
		}
		return report
	}

	// PLANNED
	bookmark, hasBookmark, err := r.deps.State.Get(ctx, m.StateKey())
	if err != nil {
		return fail(StagePlanned, err)
	}
	bootstrapDays := r.cfg.BootstrapDays
	if opts.BackfillDays > 0 {
		hasBookmark = false
		bootstrapDays = opts.BackfillDays
	}
	window, ok := plan.Plan(bookmark, hasBookmark, r.now(), r.cfg.SafetyLag, bootstrapDays, r.cfg.Granularity)
	if !ok {
		report.Status = telemetry.StatusSkipped
		report.Reason = "window empty, nothing to fetch"
		log.Debug("fetch window empty, skipping meter")
		return report
	}
	report.WindowStart, report.WindowEnd = window.Start, window.End
	log.WithFields(logrus.Fields{"start": window.Start, "end": window.End}).Info("window planned")

	// FETCHING
	report.Stage = string(StageFetching)
	raw, err := r.deps.Source.Consumption(ctx, m, window.Start, window.End)
	if err != nil {
		return fail(StageFetching, err)
	}
	report.RowsFetched = len(raw)
	if len(raw) == 0 {
		report.Status = telemetry.StatusSkipped
		report.Reason = "no new consumption data"
		log.Info("no new consumption data")
		return report
	}

	// VALIDATING
	report.Stage = string(StageValidating)
	cleaned := validate.Clean(raw)
	if len(cleaned) == 0 {
		report.Status = telemetry.StatusSkipped
		report.Reason = "no valid intervals after cleaning"
		return report
	}
	continuity := validate.CheckContinuity(cleaned, r.cfg.Granularity)
	report.MissingSlots = continuity.MissingCount()
	if report.MissingSlots > 0 {
		log.WithFields(logrus.Fields{"expected": continuity.Expected, "missing": report.MissingSlots}).
			Warn("gaps in interval coverage")
	}

	// WRITING_RAW
	report.Stage = string(StageWritingRaw)
	stats, err := r.deps.Writer.WriteConsumption(ctx, m, cleaned)
	if err != nil {
		return fail(StageWritingRaw, err)
	}
	report.RowsWritten = stats.Rows

	// Optional cost branch; its failure never blocks the raw commit.
	r.runCostBranch(ctx, m, cleaned, log, &report)

	// COMMIT_STATE
	report.Stage = string(StageCommitState)
	maxEnd := maxIntervalEnd(cleaned)
	if err := r.deps.State.Commit(ctx, m.StateKey(), maxEnd); err != nil {
		return fail(StageCommitState, err)
	}
	report.Bookmark = maxEnd

	report.Stage = string(StageDone)
	report.Status = telemetry.StatusSucceeded
	return report
}

// runCostBranch resolves the tariff, fetches rates for the written span and
// writes costed partitions. All failures downgrade to a skipped cost branch.
func (r *Runner) runCostBranch(ctx context.Context, m meter.Meter, cleaned []meter.Interval, log logrus.FieldLogger, report *telemetry.MeterReport) {
	if r.deps.Resolver == nil || r.deps.Rates == nil || r.deps.Enricher == nil {
		report.CostSkipped = true
		return
	}

	skip := func(stage Stage, err error) {
		report.CostSkipped = true
		if errors.Is(err, tariff.ErrNoTariff) {
			log.WithError(err).Warn("tariff resolution failed, cost enrichment skipped")
			return
		}
		log.WithField("stage", string(stage)).WithError(err).
			Warn("cost enrichment failed, raw ingestion unaffected")
	}

	report.Stage = string(StageResolvingTariff)
	codes, err := r.deps.Resolver.Resolve(ctx, m, r.now())
	if err != nil {
		skip(StageResolvingTariff, err)
		return
	}

	report.Stage = string(StageJoiningRates)
	start := cleaned[0].Start
	end := maxIntervalEnd(cleaned)
	rs, err := r.deps.Rates.Fetch(ctx, codes.ProductCode, codes.TariffCode, m.Kind, start, end)
	if err != nil {
		skip(StageJoiningRates, err)
		return
	}

	report.Stage = string(StageWritingCost)
	res, err := r.deps.Enricher.Enrich(ctx, m, cleaned, codes.TariffCode, rates.NewJoiner(rs))
	if err != nil {
		skip(StageWritingCost, err)
		return
	}
	report.UnmatchedRates = res.Unmatched
	report.CostRows = res.Rows
}

// maxIntervalEnd returns the largest interval_end; cleaned input is sorted
// by start, but an out-of-order end is still handled.
func maxIntervalEnd(intervals []meter.Interval) time.Time {
	max := intervals[0].End
	for _, iv := range intervals[1:] {
		if iv.End.After(max) {
			max = iv.End
		}
	}
	return max
}

// Describe returns a short human-readable label for the run configuration,
// used by the trigger server.
func (r *Runner) Describe() string {
	return fmt.Sprintf("%d meters, concurrency %d, timeout %s",
		len(r.cfg.Meters), r.cfg.Concurrency, r.cfg.RunTimeout)
}
