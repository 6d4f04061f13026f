package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/chriscoveyduck/octopus2adls/pkg/httpx"
	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
	"github.com/chriscoveyduck/octopus2adls/pkg/pipeline"
	"github.com/chriscoveyduck/octopus2adls/pkg/telemetry"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

// triggerServer exposes the run trigger over HTTP for deployments where the
// scheduler is an external HTTP caller. At most one run is in flight; a
// second trigger while running is rejected.
type triggerServer struct {
	runner *pipeline.Runner
	store  lake.ObjectStore
	log    logrus.FieldLogger

	mu      sync.Mutex
	running bool
	last    *telemetry.RunSummary
}

func serveTrigger(addr string, runner *pipeline.Runner, store lake.ObjectStore, log logrus.FieldLogger) {
	ts := &triggerServer{runner: runner, store: store, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/run", ts.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/healthz", ts.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/summary", ts.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/partitions", ts.handlePartitions).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.WithField("addr", addr).Infof("trigger server listening (%s)", runner.Describe())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("trigger server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down trigger server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
}

func (s *triggerServer) handleRun(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		httpx.RespondErrorString(w, http.StatusConflict, "a run is already in flight")
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		summary, err := s.runner.Run(context.Background(), pipeline.Options{})
		if err != nil {
			s.log.WithError(err).Error("triggered run aborted")
		}
		s.mu.Lock()
		s.last = &summary
		s.mu.Unlock()
	}()

	httpx.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "run started"})
}

func (s *triggerServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePartitions lists lake objects under an optional ?prefix=, defaulting
// to the raw consumption dataset. Operators use it to see what has landed.
func (s *triggerServer) handlePartitions(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "consumption/"
	}
	paths, err := s.store.List(r.Context(), prefix)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"prefix": prefix,
		"count":  len(paths),
		"paths":  paths,
	})
}

func (s *triggerServer) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		httpx.RespondErrorString(w, http.StatusNotFound, "no run has completed yet")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, last)
}
