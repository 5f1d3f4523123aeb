// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/api"
	"github.com/pdiddy/research-journey/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and scheduled ledger reconciliation",
	Long: `Serve starts the HTTP API on server.addr. Requests under /api/v1 need a
bearer token signed with server.jwt_secret. When ledger.reconcile_schedule
is set, point totals are reconciled against their history on that cron
schedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is not set (config, RESEARCH_JOURNEY_SERVER_JWT_SECRET or .secrets/jwt-secret)")
	}
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := cron.New()
	if cfg.Ledger.ReconcileSchedule != "" {
		_, err := scheduler.AddFunc(cfg.Ledger.ReconcileSchedule, func() {
			logger.Info("running scheduled ledger reconciliation")
			repaired, err := a.ledger.ReconcileAll(ctx)
			if err != nil {
				logger.Error("ledger reconciliation failed", zap.Error(err))
				return
			}
			logger.Info("ledger reconciliation completed", zap.Int("repaired", repaired))
		})
		if err != nil {
			return fmt.Errorf("scheduling reconciliation %q: %w", cfg.Ledger.ReconcileSchedule, err)
		}
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	verifier := session.NewVerifier(cfg.Server.JWTSecret, cfg.Server.JWTIssuer)
	metricsHandler := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	router := api.NewRouter(a.services(), verifier, metricsHandler, logger.Named("api"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
