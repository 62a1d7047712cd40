// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/lintrun/pkg/logging"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "lintrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig_MatchesHardCodedRun(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))

	linter := cfg.ToLinterConfig()
	assert.Equal(t, "flake8", linter.Command)
	assert.Equal(t, "../setup.cfg", linter.Settings)
	assert.Equal(t, []string{"../desc", "../tests"}, linter.Targets)
	assert.Equal(t, "flake8_errors.ini", linter.ReportFile)
	assert.Equal(t, "flake8_summary.ini", linter.SummaryFile)
	assert.Equal(t, ExitPropagate, cfg.ExitMode)
	assert.Empty(t, cfg.History.Dir)
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvConfigPath, "")

	cfg, source, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, source)
	assert.Equal(t, DefaultConfig().Linter, cfg.Linter)
}

func TestLoad_WorkingDirFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv(EnvConfigPath, "")
	writeConfig(t, dir, "exit_mode: never\n")

	cfg, source, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".", DefaultFileName), source)
	assert.Equal(t, ExitNever, cfg.ExitMode)
	assert.Equal(t, "flake8", cfg.Linter.Command, "unset keys keep defaults")
}

func TestLoad_ExplicitOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(envPath, []byte("exit_mode: never\n"), 0644))
	t.Setenv(EnvConfigPath, envPath)

	flagPath := writeConfig(t, dir, "exit_mode: policy\n")

	cfg, source, err := Load(flagPath)
	require.NoError(t, err)
	assert.Equal(t, flagPath, source)
	assert.Equal(t, ExitPolicy, cfg.ExitMode)

	cfg, source, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, envPath, source)
	assert.Equal(t, ExitNever, cfg.ExitMode)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_FullFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
linter:
  command: /opt/venv/bin/flake8
  settings: tox.ini
  targets: [src, tests, scripts]
  timeout: 90s
  extra_args: [--select, "E9,F63"]
outputs:
  dir: build
  report: errors.txt
  summary: stats.txt
exit_mode: policy
policy:
  block_on: [F]
  ignore: [F401]
history:
  dir: .lintrun/history
  keep: 50
watch:
  listen: ":9464"
  debounce: 1s
telemetry:
  metric_exporter: prometheus
  metrics_file: lintrun.prom
logging:
  level: debug
  json: true
`)

	cfg, _, err := Load(path)
	require.NoError(t, err)

	linter := cfg.ToLinterConfig()
	assert.Equal(t, "/opt/venv/bin/flake8", linter.Command)
	assert.Equal(t, []string{"src", "tests", "scripts"}, linter.Targets)
	assert.Equal(t, 90*time.Second, linter.Timeout)
	assert.Equal(t, []string{"--select", "E9,F63"}, linter.ExtraArgs)
	assert.Equal(t, filepath.Join("build", "errors.txt"), linter.ReportPath())

	assert.Equal(t, []string{"F"}, cfg.Policy.BlockOn)
	assert.Equal(t, []string{"F401"}, cfg.Policy.Ignore)
	assert.Equal(t, 50, cfg.History.Keep)
	assert.Equal(t, ":9464", cfg.Watch.Listen)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, 2*time.Second, cfg.Watch.MinInterval)
	assert.Equal(t, "lintrun.prom", cfg.Telemetry.MetricsFile)

	logOpts := cfg.LoggingOptions()
	assert.Equal(t, logging.LevelDebug, logOpts.Level)
	assert.True(t, logOpts.JSON)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "linter:\n  comand: flake8\n"},
		{"bad exit mode", "exit_mode: sometimes\n"},
		{"empty targets", "linter:\n  targets: []\n"},
		{"blank target", "linter:\n  targets: [src, \"\"]\n"},
		{"same outputs", "outputs:\n  report: a.ini\n  summary: a.ini\n"},
		{"negative timeout", "linter:\n  timeout: -1s\n"},
		{"bad exporter", "telemetry:\n  trace_exporter: zipkin\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad listen", "watch:\n  listen: nine\n"},
		{"option as target", "linter:\n  targets: [src, --exit-zero]\n"},
		{"malformed rule prefix", "policy:\n  block_on: [E-9]\n"},
		{"glob rule prefix", "policy:\n  ignore: [\"E*\"]\n"},
		{"not yaml", "linter: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, _, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_NormalizesRulePrefixes(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "policy:\n  block_on: [e9, \" f82 \"]\n  ignore: [w6]\n")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"E9", "F82"}, cfg.Policy.BlockOn)
	assert.Equal(t, []string{"W6"}, cfg.Policy.Ignore)
}

func TestDecode_Empty(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Decode(nil, &cfg))
	assert.Equal(t, DefaultConfig().Outputs, cfg.Outputs)
}

func TestToLinterConfig_DoesNotAlias(t *testing.T) {
	cfg := DefaultConfig()
	linter := cfg.ToLinterConfig()
	linter.Targets[0] = "changed"

	assert.Equal(t, "../desc", cfg.Linter.Targets[0])
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", DefaultFileName)
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "linter")
	assert.Contains(t, raw, "exit_mode")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Linter, cfg.Linter)

	assert.Error(t, WriteDefault(path), "existing file must not be overwritten")
}
