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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// skippedDirs are never watched.
var skippedDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".tox":          true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	"node_modules":  true,
}

// sourceWatcher signals when Python sources under the targets change.
//
// # Description
//
// Watches every directory below the targets (fsnotify is not recursive)
// plus the directory holding the flake8 settings file. The directory is
// watched rather than the file because editors that save by renaming a
// temporary file over the original drop a watch on the file itself. Events
// on the run's own artifacts are ignored so a run never triggers the next
// one.
//
// # Thread Safety
//
// Start should only be called once.
type sourceWatcher struct {
	watcher   *fsnotify.Watcher
	targets   []string
	settings  string
	artifacts map[string]bool
	changed   chan<- string

	// dirs are the absolute directories added below the targets.
	dirs map[string]bool
	// settingsDir is set when the settings directory is watched only for
	// the settings file. Other events there are ignored.
	settingsDir string
}

// newSourceWatcher creates a watcher that sends changed paths on changed.
// Sends never block; a pending notification already covers new events.
func newSourceWatcher(targets []string, settings string, artifacts []string, changed chan<- string) (*sourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignored := make(map[string]bool, len(artifacts))
	for _, path := range artifacts {
		ignored[absPath(path)] = true
	}

	return &sourceWatcher{
		watcher:   watcher,
		targets:   targets,
		settings:  settings,
		artifacts: ignored,
		changed:   changed,
		dirs:      make(map[string]bool),
	}, nil
}

// Start registers the watches and blocks until ctx is cancelled.
func (w *sourceWatcher) Start(ctx context.Context) error {
	watched := 0
	for _, target := range w.targets {
		watched += w.addTree(target)
	}
	if w.settings != "" {
		w.watchSettings()
	}

	slog.Info("Watching sources",
		"targets", w.targets,
		"directories", watched)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Source watcher error",
				"error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

// addTree watches root and all directories below it. Returns the number of
// directories added. A target that is a file is watched directly.
func (w *sourceWatcher) addTree(root string) int {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if path == root {
				if err := w.watcher.Add(path); err == nil {
					added++
				}
			}
			return nil
		}
		if path != root && skippedDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("Failed to watch directory", "path", path, "error", err)
			return nil
		}
		w.dirs[absPath(path)] = true
		added++
		return nil
	})
	if err != nil {
		slog.Warn("Failed to walk target", "target", root, "error", err)
	}
	return added
}

func (w *sourceWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if w.artifacts[absPath(event.Name)] {
		return
	}

	// New directories must be added explicitly.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skippedDirs[filepath.Base(event.Name)] && !w.inSettingsDir(event.Name) {
				w.addTree(event.Name)
			}
			return
		}
	}

	if !w.relevant(event.Name) {
		return
	}

	slog.Debug("Source changed",
		"path", event.Name,
		"op", event.Op.String())

	select {
	case w.changed <- event.Name:
	default:
	}
}

// relevant reports whether a change to path can alter flake8's output.
func (w *sourceWatcher) relevant(path string) bool {
	if w.settings != "" && absPath(path) == absPath(w.settings) {
		return true
	}
	if w.inSettingsDir(path) {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		return true
	}
	switch filepath.Base(path) {
	case ".flake8", "setup.cfg", "tox.ini":
		return true
	}
	return false
}

// watchSettings watches the settings file's directory unless a target
// tree already covers it.
func (w *sourceWatcher) watchSettings() {
	dir := absPath(filepath.Dir(w.settings))
	if w.dirs[dir] {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		slog.Debug("Not watching settings file",
			"path", w.settings,
			"error", err)
		return
	}
	w.settingsDir = dir
}

func (w *sourceWatcher) inSettingsDir(path string) bool {
	return w.settingsDir != "" && absPath(filepath.Dir(path)) == w.settingsDir
}

// Stop releases the fsnotify watcher. Safe to call multiple times.
func (w *sourceWatcher) Stop() error {
	return w.watcher.Close()
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
