// Command ingestd runs the Octopus Energy ingestion pipeline once per
// invocation, or serves an HTTP trigger endpoint with -listen. The actual
// schedule belongs to whatever invokes it (cron, a timer trigger, systemd).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/config"
	"github.com/chriscoveyduck/octopus2adls/pkg/enrich"
	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
	"github.com/chriscoveyduck/octopus2adls/pkg/lake/badgerstore"
	"github.com/chriscoveyduck/octopus2adls/pkg/lake/local"
	"github.com/chriscoveyduck/octopus2adls/pkg/lake/retention"
	"github.com/chriscoveyduck/octopus2adls/pkg/octopus"
	"github.com/chriscoveyduck/octopus2adls/pkg/pipeline"
	"github.com/chriscoveyduck/octopus2adls/pkg/rates"
	"github.com/chriscoveyduck/octopus2adls/pkg/state"
	"github.com/chriscoveyduck/octopus2adls/pkg/tariff"
	"github.com/chriscoveyduck/octopus2adls/pkg/telemetry"
)

// upstream allows ~1 request/s sustained; coarse but keeps a multi-meter run
// well under the API's limits.
const defaultRPS = 1.0

func main() {
	var (
		configPath    = flag.String("config", "", "path to JSON config file (env vars always apply)")
		storeKind     = flag.String("store", "local", "lake backend: local or badger")
		dataDir       = flag.String("data-dir", "", "override lake data directory")
		listenAddr    = flag.String("listen", "", "serve HTTP trigger on this address instead of running once")
		backfillDays  = flag.Int("backfill-days", 0, "ignore bookmarks and backfill this many days")
		retentionDays = flag.Int("retention-days", 0, "prune partitions older than this many days after a run (0 disables)")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("configuration invalid")
	}
	if cfg.DebugLogging {
		log.SetLevel(logrus.DebugLevel)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if len(cfg.Meters) == 0 {
		log.Warn("no meters configured, every run will be a no-op")
	}

	store, err := openStore(*storeKind, cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open lake store")
	}
	defer store.Close()

	runner, err := buildRunner(cfg, store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}

	if *listenAddr != "" {
		serveTrigger(*listenAddr, runner, store, log)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx, pipeline.Options{BackfillDays: *backfillDays})
	if err != nil {
		log.WithError(err).Error("run aborted")
		os.Exit(1)
	}
	if *retentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -*retentionDays)
		if _, err := retention.New(store, log).Prune(ctx, cutoff); err != nil {
			log.WithError(err).Warn("retention pruning failed")
		}
	}
	if summary.Failed > 0 && summary.Succeeded == 0 && summary.Skipped == 0 {
		// Nothing made progress this run; surface it to the trigger.
		os.Exit(1)
	}
}

func openStore(kind, dataDir string) (lake.ObjectStore, error) {
	if kind == "badger" {
		return badgerstore.New(badgerstore.Config{Path: dataDir})
	}
	return local.New(dataDir)
}

func buildRunner(cfg *config.Config, store lake.ObjectStore, log logrus.FieldLogger) (*pipeline.Runner, error) {
	limiter := octopus.NewRateLimiter(defaultRPS)
	client := octopus.New(octopus.Config{
		BaseURL:       cfg.APIBaseURL,
		APIKey:        cfg.APIKey,
		AccountNumber: cfg.AccountNumber,
		Limiter:       limiter,
		Log:           log,
	})

	writer := lake.NewWriter(store, log)
	return pipeline.NewRunner(cfg, pipeline.Deps{
		Source:   client,
		Store:    store,
		Writer:   writer,
		State:    state.New(store, log),
		Resolver: tariff.NewResolver(cfg.Tariffs, client, log),
		Rates:    rates.NewFetcher(client, writer, log),
		Enricher: enrich.New(writer, log),
		Sink:     telemetry.LogSink{Log: log},
		Log:      log,
	})
}
