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
	"time"

	"github.com/AleutianAI/lintrun/pkg/logging"
	"github.com/AleutianAI/lintrun/services/lint"
	"github.com/AleutianAI/lintrun/services/telemetry"
)

// ExitMode decides how linter results become lintrun's exit status.
type ExitMode string

const (
	// ExitPropagate exits with the statistics invocation's exit code.
	ExitPropagate ExitMode = "propagate"

	// ExitNever exits 0 whenever both invocations ran.
	ExitNever ExitMode = "never"

	// ExitPolicy exits 1 when a blocking rule matched, 2 on a tool error.
	ExitPolicy ExitMode = "policy"
)

// LintrunConfig is the lintrun.yaml file.
type LintrunConfig struct {
	// Linter: what to run and against which paths
	Linter LinterConfig `yaml:"linter"`

	// Outputs: where the two artifacts go
	Outputs OutputsConfig `yaml:"outputs"`

	// ExitMode: propagate, never or policy
	ExitMode ExitMode `yaml:"exit_mode" validate:"omitempty,oneof=propagate never policy"`

	// Policy: rule prefixes for severity and blocking
	Policy lint.RulePolicy `yaml:"policy"`

	History   HistoryConfig    `yaml:"history"`
	Watch     WatchConfig      `yaml:"watch"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Logging   LoggingConfig    `yaml:"logging"`
}

type LinterConfig struct {
	// Command is the linter executable, e.g. flake8
	Command string `yaml:"command" validate:"required"`

	// Settings is passed as --config. Empty omits the flag.
	Settings string `yaml:"settings"`

	// Targets are scanned in order, e.g. [../desc, ../tests]
	Targets []string `yaml:"targets" validate:"required,min=1,dive,required"`

	// Timeout bounds each invocation. 0 disables it.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// ExtraArgs go before the targets, e.g. [--select, "E9,F63"]
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

type OutputsConfig struct {
	Dir     string `yaml:"dir"`
	Report  string `yaml:"report" validate:"required"`
	Summary string `yaml:"summary" validate:"required,nefield=Report"`
}

type HistoryConfig struct {
	// Dir is the BadgerDB directory. Empty disables history.
	Dir string `yaml:"dir"`

	// Keep is how many runs to retain. 0 keeps everything.
	Keep int `yaml:"keep" validate:"gte=0"`
}

type WatchConfig struct {
	// Listen is the HTTP address for /metrics and /v1/report, e.g. ":9464".
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`

	// Debounce waits for file events to settle before a rerun.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`

	// MinInterval is the minimum time between two runs.
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the settings lintrun uses without a config file.
// The linter and output values match the classic two-step flake8 script.
func DefaultConfig() LintrunConfig {
	linter := lint.DefaultLinterConfig()
	return LintrunConfig{
		Linter: LinterConfig{
			Command:  linter.Command,
			Settings: linter.Settings,
			Targets:  linter.Targets,
			Timeout:  linter.Timeout,
		},
		Outputs: OutputsConfig{
			Dir:     ".",
			Report:  linter.ReportFile,
			Summary: linter.SummaryFile,
		},
		ExitMode:  ExitPropagate,
		Policy:    lint.DefaultPolicy.Clone(),
		Watch:     WatchConfig{Debounce: 500 * time.Millisecond, MinInterval: 2 * time.Second},
		Telemetry: telemetry.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// ToLinterConfig converts the file sections into the runner's config.
func (c *LintrunConfig) ToLinterConfig() lint.LinterConfig {
	return lint.LinterConfig{
		Command:     c.Linter.Command,
		Settings:    c.Linter.Settings,
		Targets:     append([]string(nil), c.Linter.Targets...),
		OutputDir:   c.Outputs.Dir,
		ReportFile:  c.Outputs.Report,
		SummaryFile: c.Outputs.Summary,
		Timeout:     c.Linter.Timeout,
		ExtraArgs:   append([]string(nil), c.Linter.ExtraArgs...),
	}
}

// LoggingOptions converts the logging section. Validation has already
// rejected unknown levels.
func (c *LintrunConfig) LoggingOptions() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level: level,
		Dir:   c.Logging.Dir,
		JSON:  c.Logging.JSON,
	}
}
