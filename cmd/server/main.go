package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"signup/internal/platform/config"
	"signup/internal/platform/httpserver"
	"signup/internal/platform/logger"
	platformmetrics "signup/internal/platform/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// main loads configuration, opens the configured backends and serves the
// registration API until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "signup: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	if cfg.UsesDevSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	infra := platformmetrics.New(reg)
	infra.BuildInfo.WithLabelValues(version).Set(1)

	registrationForm, err := buildForm(cfg.Registration)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, registrationForm.IdentifierField(), log, infra)
	if err != nil {
		return err
	}
	defer b.Close()

	app, err := buildApp(cfg, registrationForm, b, log, reg)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server, app.router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting signup", "addr", cfg.Server.Addr, "version", version,
			"registration_open", cfg.Registration.Open)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	if app.sweep != nil {
		g.Go(func() error {
			app.sweep(gctx, time.Minute)
			return nil
		})
	}
	return g.Wait()
}
