// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lintrun runs flake8 twice over a project: once for the full
// diagnostic report and once for per-rule statistics, after removing the
// artifacts of the previous run.
//
// With no arguments it behaves exactly like:
//
//	rm -f flake8_errors.ini flake8_summary.ini
//	flake8 --config ../setup.cfg ../desc ../tests --output-file flake8_errors.ini
//	flake8 --config ../setup.cfg -qq --statistics ../desc ../tests --output-file flake8_summary.ini
//
// and exits with the second flake8's exit status.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
