// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/api"
	"github.com/pdiddy/research-journey/internal/directory"
	"github.com/pdiddy/research-journey/internal/export"
	"github.com/pdiddy/research-journey/internal/httputil"
	"github.com/pdiddy/research-journey/internal/journey"
	"github.com/pdiddy/research-journey/internal/ledger"
	"github.com/pdiddy/research-journey/internal/metrics"
	"github.com/pdiddy/research-journey/internal/project"
	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/internal/topic"
	"github.com/pdiddy/research-journey/pkg/types"
)

// app wires every service over one store.
type app struct {
	store     *store.Store
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	tasks     *tasks.Tracker
	projects  *project.Registry
	ledger    *ledger.Ledger
	journey   *journey.Controller
	topics    *topic.Flow
	directory *directory.Directory
	exporter  *export.Exporter
}

func newApp(ctx context.Context, cfg types.Config, logger *zap.Logger) (*app, error) {
	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tr := tasks.New(s, logger.Named("tasks"))
	projects := project.New(s, tr, logger.Named("project"))
	l := ledger.New(s, ledger.WithLogger(logger.Named("ledger")), ledger.WithRecorder(m))
	ctrl := journey.New(s, projects, tr, l, logger.Named("journey"))
	ctrl.Subscribe(m.Observe)

	var rec topic.Recommender
	if cfg.Topic.RecommenderURL != "" {
		rec = topic.NewHTTPRecommender(cfg.Topic, httputil.NewClient(cfg.Topic.HTTPConfig, logger.Named("recommender")))
	}
	flow := topic.NewFlow(topic.DefaultCatalog(), rec, ctrl, logger.Named("topic"))

	backends := directory.NewBackends(cfg.Directory, httputil.NewClient(cfg.Directory.HTTPConfig, logger.Named("platforms")))
	dir := directory.New(s, backends, l, logger.Named("directory"))
	dir.SetRecorder(m)

	var uploader export.Uploader
	up, err := export.NewS3Uploader(ctx, cfg.Export)
	if err != nil {
		s.Close()
		return nil, err
	}
	if up != nil {
		uploader = up
	}
	exp := export.New(projects, tr, l, cfg.Export.Dir, uploader, logger.Named("export"))

	return &app{
		store:     s,
		registry:  reg,
		metrics:   m,
		tasks:     tr,
		projects:  projects,
		ledger:    l,
		journey:   ctrl,
		topics:    flow,
		directory: dir,
		exporter:  exp,
	}, nil
}

func (a *app) services() api.Services {
	return api.Services{
		Store:     a.store,
		Projects:  a.projects,
		Tasks:     a.tasks,
		Journey:   a.journey,
		Ledger:    a.ledger,
		Topics:    a.topics,
		Directory: a.directory,
		Exporter:  a.exporter,
	}
}

func (a *app) Close() error { return a.store.Close() }

// withApp opens the app for the duration of fn.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
