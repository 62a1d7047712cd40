// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/lintrun/services/lint"
	"github.com/AleutianAI/lintrun/services/telemetry"
)

const shutdownTimeout = 5 * time.Second

func (a *app) watchCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run once, then rerun whenever Python sources under the targets change",
		Long: `watch performs a full run at startup and again after every change to a
.py file below the targets or to the flake8 settings file. Bursts of changes
are debounced (watch.debounce) and runs are spaced at least
watch.min_interval apart.

With --listen, an HTTP server exposes:

  GET /metrics    Prometheus metrics for every invocation
  GET /v1/report  the latest run as JSON
  GET /healthz    liveness

watch exits 0 on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Watch.Listen = listen
			}
			if err := a.startTelemetry(cmd.Context(), a.cfg.Watch.Listen != ""); err != nil {
				return err
			}
			err := a.runWatch(cmd.Context(), nil)
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "serve /metrics and /v1/report on this address, e.g. :9464")
	return cmd
}

// runWatch blocks until ctx is cancelled or a component fails. ready, when
// non-nil, receives the server's bound address (or "" without --listen)
// once everything is started.
func (a *app) runWatch(ctx context.Context, ready chan<- string) error {
	runner := a.newRunner()
	state := &watchState{}

	var listener net.Listener
	addr := ""
	if a.cfg.Watch.Listen != "" {
		var err error
		listener, err = net.Listen("tcp", a.cfg.Watch.Listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", a.cfg.Watch.Listen, err)
		}
		addr = listener.Addr().String()
	}

	changed := make(chan string, 1)
	watcher, err := newSourceWatcher(
		a.watchTargets(runner),
		a.resolvePath(runner.Config().Settings),
		[]string{runner.ReportPath(), runner.SummaryPath()},
		changed,
	)
	if err != nil {
		if listener != nil {
			listener.Close()
		}
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Start(gctx)
	})

	g.Go(func() error {
		return a.runLoop(gctx, runner, state, changed)
	})

	if listener != nil {
		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{
			Handler:           newRouter(state),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			slog.Info("Serving watch endpoints", slog.String("address", addr))
			if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if ready != nil {
		ready <- addr
	}

	err = g.Wait()
	if ctx.Err() != nil {
		// Interrupted: a clean stop.
		return nil
	}
	return err
}

// runLoop performs the startup run, then one run per batch of changes.
func (a *app) runLoop(ctx context.Context, runner *lint.Runner, state *watchState, changed <-chan string) error {
	interval := a.cfg.Watch.MinInterval
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		a.watchRun(ctx, runner, state)

		select {
		case <-ctx.Done():
			return nil
		case path := <-changed:
			slog.Info("Change detected, rerunning", slog.String("path", path))
		}

		if !a.debounce(ctx, changed) {
			return nil
		}
	}
}

// debounce waits until no change arrived for watch.debounce. Returns false
// if ctx was cancelled.
func (a *app) debounce(ctx context.Context, changed <-chan string) bool {
	quiet := a.cfg.Watch.Debounce
	if quiet <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-changed:
			timer.Reset(quiet)
		case <-timer.C:
			return true
		}
	}
}

// watchRun performs one run and publishes the result. Failures are logged,
// not returned: a missing flake8 or a timeout should not end the watch.
func (a *app) watchRun(ctx context.Context, runner *lint.Runner, state *watchState) {
	result, err := runner.Run(ctx)
	if ctx.Err() != nil {
		return
	}
	state.record(result, err)

	if err != nil {
		a.printer.Error(failureDetail(err))
		return
	}

	a.printer.Summary(runSummary(runner, result))
	a.recordHistory(result)

	if a.cfg.Telemetry.MetricsFile != "" {
		if err := telemetry.WriteTextfile(a.cfg.Telemetry.MetricsFile); err != nil {
			slog.Warn("Could not write metrics file", slog.String("error", err.Error()))
		}
	}

	slog.Debug("Watch run finished",
		slog.String("full", describeInvocation(result.Full)),
		slog.String("summary", describeInvocation(result.Summary)),
	)
}

// watchTargets returns the targets as seen from this process.
func (a *app) watchTargets(runner *lint.Runner) []string {
	targets := runner.Config().Targets
	resolved := make([]string, 0, len(targets))
	for _, target := range targets {
		resolved = append(resolved, a.resolvePath(target))
	}
	return resolved
}

// resolvePath makes a flake8-relative path usable from this process.
func (a *app) resolvePath(path string) string {
	if path == "" || a.workingDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.workingDir, path)
}
