// Package retention prunes lake partitions past their retention horizon.
package retention

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
)

// prefixes holds the partitioned datasets subject to retention. State objects
// are never pruned.
var prefixes = []string{"consumption/", "consumption_cost/", "rates/"}

var datePattern = regexp.MustCompile(`date=(\d{4}-\d{2}-\d{2})/`)

// Stats summarizes one pruning pass.
type Stats struct {
	Scanned int
	Deleted int
}

// Pruner deletes date partitions older than a cutoff.
type Pruner struct {
	store lake.ObjectStore
	log   logrus.FieldLogger
}

// New returns a pruner over store.
func New(store lake.ObjectStore, log logrus.FieldLogger) *Pruner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pruner{store: store, log: log}
}

// Prune deletes every partition whose date falls strictly before cutoff's
// date. Objects without a date segment are left alone.
func (p *Pruner) Prune(ctx context.Context, cutoff time.Time) (Stats, error) {
	cutoffDate := cutoff.UTC().Truncate(24 * time.Hour)

	var stats Stats
	for _, prefix := range prefixes {
		paths, err := p.store.List(ctx, prefix)
		if err != nil {
			return stats, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, path := range paths {
			stats.Scanned++
			m := datePattern.FindStringSubmatch(path)
			if m == nil {
				continue
			}
			day, err := time.Parse("2006-01-02", m[1])
			if err != nil {
				continue
			}
			if !day.Before(cutoffDate) {
				continue
			}
			if err := p.store.Delete(ctx, path); err != nil {
				return stats, fmt.Errorf("delete %s: %w", path, err)
			}
			stats.Deleted++
			p.log.WithField("path", path).Debug("partition pruned")
		}
	}
	if stats.Deleted > 0 {
		p.log.WithFields(logrus.Fields{"scanned": stats.Scanned, "deleted": stats.Deleted,
			"cutoff": cutoffDate.Format("2006-01-02")}).Info("retention pruning finished")
	}
	return stats, nil
}
