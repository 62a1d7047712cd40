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
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/lintrun/services/lint"
	"github.com/AleutianAI/lintrun/services/telemetry"
)

// watchState holds the outcome of the most recent run in watch mode.
//
// Thread Safety: Safe for concurrent use.
type watchState struct {
	mu      sync.RWMutex
	latest  *lint.RunResult
	lastErr error
	runs    int
}

func (s *watchState) record(result *lint.RunResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastErr = err
	if err == nil {
		s.latest = result
	}
}

func (s *watchState) snapshot() (*lint.RunResult, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.runs, s.lastErr
}

// reportResponse is the body of GET /v1/report.
type reportResponse struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  string           `json:"duration"`
	ExitCode  int              `json:"exit_code"`
	Issues    []lint.Issue     `json:"issues"`
	Stats     []lint.Statistic `json:"statistics"`
	Rules     []string         `json:"rules"`
	Severity  map[string]int   `json:"severity"`
	Blocking  int              `json:"blocking"`
	Runs      int              `json:"runs"`
	LastError string           `json:"last_error,omitempty"`
}

// newRouter builds the watch mode HTTP surface.
//
// Endpoints:
//
//	GET /healthz    - liveness
//	GET /metrics    - Prometheus exposition (when the exporter is active)
//	GET /v1/report  - the latest completed run as JSON, 503 before the first
func newRouter(state *watchState) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("lintrun"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if handler := telemetry.MetricsHandler(); handler != nil {
		router.GET("/metrics", gin.WrapH(handler))
	}

	v1 := router.Group("/v1")
	v1.GET("/report", func(c *gin.Context) {
		result, runs, lastErr := state.snapshot()
		if result == nil {
			body := gin.H{"error": "no run completed yet", "runs": runs}
			if lastErr != nil {
				body["last_error"] = lastErr.Error()
			}
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}

		resp := reportResponse{
			RunID:     result.RunID,
			StartedAt: result.StartedAt,
			Duration:  result.Duration.String(),
			ExitCode:  result.ExitCode(),
			Issues:    []lint.Issue{},
			Stats:     []lint.Statistic{},
			Rules:     []string{},
			Severity:  map[string]int{},
			Blocking:  len(result.Blocking),
			Runs:      runs,
		}
		if result.Report != nil {
			resp.Issues = append(resp.Issues, result.Report.Issues...)
			resp.Stats = append(resp.Stats, result.Report.Statistics...)
			resp.Rules = append(resp.Rules, result.Report.Rules()...)
			for severity, n := range result.Report.CountBySeverity() {
				resp.Severity[severity.String()] = n
			}
		}
		if lastErr != nil {
			resp.LastError = lastErr.Error()
		}
		c.JSON(http.StatusOK, resp)
	})

	return router
}
