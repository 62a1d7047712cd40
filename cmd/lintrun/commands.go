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
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/lintrun/cmd/lintrun/config"
	"github.com/AleutianAI/lintrun/pkg/logging"
	"github.com/AleutianAI/lintrun/pkg/ux"
	"github.com/AleutianAI/lintrun/services/lint"
	"github.com/AleutianAI/lintrun/services/telemetry"
)

// app is the state shared by one execution of the command tree.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	configFile string
	logLevel   string
	plain      bool

	cfg     *config.LintrunConfig
	source  string
	logger  *logging.Logger
	printer *ux.Printer

	// workingDir is where flake8 runs. Empty means the process cwd.
	workingDir string

	closers []func(context.Context) error
}

// execute builds the command tree, runs it and returns the process exit
// code. Cleanup registered by commands runs before it returns.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()

	var exitErr *ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		if exitErr.Err != nil {
			fmt.Fprintf(stderr, "lintrun: %v\n", exitErr.Err)
		}
	default:
		fmt.Fprintf(stderr, "lintrun: %v\n", err)
	}
	return exitCodeOf(err)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lintrun",
		Short: "Run flake8 and write a full report plus a statistics summary",
		Long: `lintrun removes the previous artifacts, then runs flake8 twice over the
configured targets: once writing every diagnostic to the report file, and
once with -qq --statistics writing per-rule counts to the summary file.

Without a subcommand it runs with the settings from lintrun.yaml, or the
built-in defaults (../setup.cfg, ../desc, ../tests) when there is none.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configFile, "config-file", "", "path to lintrun.yaml (default $"+config.EnvConfigPath+" or ./"+config.DefaultFileName+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.plain, "plain", false, "disable colors and boxes")

	runCmd := a.runCommand()
	root.RunE = runCmd.RunE
	root.Flags().AddFlagSet(runCmd.Flags())

	root.AddCommand(
		runCmd,
		a.checkCommand(),
		a.watchCommand(),
		a.historyCommand(),
		a.configCommand(),
		a.versionCommand(),
	)

	// Misuse exits 2 so it is never mistaken for flake8's findings status.
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitToolError, Err: err}
	})
	wrapArgValidators(root)
	return root
}

// wrapArgValidators makes positional argument errors usage errors on cmd
// and every command below it.
func wrapArgValidators(cmd *cobra.Command) {
	if validate := cmd.Args; validate != nil {
		cmd.Args = func(c *cobra.Command, args []string) error {
			if err := validate(c, args); err != nil {
				return &ExitError{Code: ExitToolError, Err: err}
			}
			return nil
		}
	}
	for _, sub := range cmd.Commands() {
		wrapArgValidators(sub)
	}
}

// setup loads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}

	cfg, source, err := config.Load(a.configFile)
	if err != nil {
		return &ExitError{Code: ExitToolError, Err: err}
	}
	logOpts := cfg.LoggingOptions()
	if a.logLevel != "" {
		level, err := logging.ParseLevel(a.logLevel)
		if err != nil {
			return &ExitError{Code: ExitToolError, Err: err}
		}
		logOpts.Level = level
		cfg.Logging.Level = a.logLevel
	}
	logOpts.Writer = a.stderr

	a.cfg = cfg
	a.source = source
	a.logger = logging.New(logOpts)
	prevDefault := slog.Default()
	a.logger.SetDefault()
	a.onClose(func(context.Context) error {
		slog.SetDefault(prevDefault)
		return a.logger.Close()
	})

	if a.plain {
		a.printer = ux.NewPlainPrinter(a.stdout)
	} else {
		a.printer = ux.NewPrinter(a.stdout)
	}

	a.logger.Debug("Configuration loaded",
		slog.String("source", sourceName(source)),
		slog.String("exit_mode", string(cfg.ExitMode)),
	)
	return nil
}

// startTelemetry installs the otel providers for commands that run flake8.
func (a *app) startTelemetry(ctx context.Context, needPrometheus bool) error {
	tcfg := a.cfg.Telemetry
	tcfg.ServiceName = "lintrun"
	tcfg.ServiceVersion = version
	tcfg.Writer = a.stderr
	if needPrometheus && (tcfg.MetricExporter == "" || tcfg.MetricExporter == telemetry.ExporterNone) {
		tcfg.MetricExporter = telemetry.ExporterPrometheus
	}

	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return &ExitError{Code: ExitToolError, Err: err}
	}
	a.onClose(shutdown)
	return nil
}

func (a *app) newRunner() *lint.Runner {
	opts := []lint.Option{lint.WithPolicy(a.cfg.Policy)}
	if a.workingDir != "" {
		opts = append(opts, lint.WithWorkingDir(a.workingDir))
	}
	return lint.NewRunner(a.cfg.ToLinterConfig(), opts...)
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// close runs cleanup in reverse registration order, so telemetry flushes
// while the logger is still open.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			fmt.Fprintf(a.stderr, "lintrun: cleanup: %v\n", err)
		}
	}
	a.closers = nil
}

func sourceName(source string) string {
	if source == "" {
		return "defaults"
	}
	return source
}

// skipSetup marks commands that need no configuration.
const skipSetup = "lintrun/skip-setup"
