// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg := DefaultConfig()

	assert.Equal(t, "lintrun", cfg.ServiceName)
	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterNone, cfg.MetricExporter)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
}

func TestDefaultConfig_EnvEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	assert.Equal(t, "collector:4317", DefaultConfig().OTLPEndpoint)
}

func TestInit_NilContext(t *testing.T) {
	_, err := Init(nil, DefaultConfig()) //nolint:staticcheck
	assert.Equal(t, ErrNilContext, err)
}

func TestInit_Disabled(t *testing.T) {
	t.Cleanup(reset)

	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Nil(t, MetricsHandler())
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "zipkin"

	_, err := Init(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrUnknownExporter))
}

func TestInit_StdoutTrace(t *testing.T) {
	t.Cleanup(reset)

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterStdout
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "stdout-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "stdout-span")
}

func TestInit_MetricsFileImpliesPrometheus(t *testing.T) {
	t.Cleanup(reset)

	path := filepath.Join(t.TempDir(), "lintrun.prom")
	cfg := DefaultConfig()
	cfg.MetricsFile = path

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, MetricsHandler())

	counter, err := otel.Meter("test").Int64Counter("lintrun_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lintrun_test_total")
}

func TestMetricsHandler_Serves(t *testing.T) {
	t.Cleanup(reset)

	cfg := DefaultConfig()
	cfg.MetricExporter = ExporterPrometheus

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background()) //nolint:errcheck

	counter, err := otel.Meter("test").Int64Counter("lintrun_handler_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "lintrun_handler_total"))
}

func TestWriteTextfile_NoRegistry(t *testing.T) {
	reset()
	err := WriteTextfile(filepath.Join(t.TempDir(), "x.prom"))
	assert.ErrorIs(t, err, ErrNoRegistry)
}
