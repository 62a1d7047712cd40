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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/lintrun/cmd/lintrun/config"
	"github.com/AleutianAI/lintrun/pkg/logging"
	"github.com/AleutianAI/lintrun/pkg/ux"
)

func newTestWatcher(t *testing.T, settings string, artifacts ...string) (*sourceWatcher, chan string) {
	t.Helper()
	changed := make(chan string, 1)
	w, err := newSourceWatcher([]string{t.TempDir()}, settings, artifacts, changed)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })
	return w, changed
}

func TestSourceWatcher_Relevant(t *testing.T) {
	w, _ := newTestWatcher(t, "/project/custom.ini")

	tests := []struct {
		path string
		want bool
	}{
		{"/project/desc/grid.py", true},
		{"/project/desc/grid.PY", true},
		{"/project/desc/stubs.pyi", true},
		{"/project/.flake8", true},
		{"/project/setup.cfg", true},
		{"/project/tox.ini", true},
		{"/project/custom.ini", true},
		{"/project/README.md", false},
		{"/project/desc/grid.pyc", false},
		{"/project/other.ini", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.relevant(tt.path), tt.path)
	}
}

func TestSourceWatcher_HandleEvent(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "flake8_errors.ini")
	w, changed := newTestWatcher(t, "", artifact)

	w.handleEvent(fsnotify.Event{Name: "/src/a.py", Op: fsnotify.Chmod})
	w.handleEvent(fsnotify.Event{Name: artifact, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: "/src/notes.txt", Op: fsnotify.Write})
	assert.Empty(t, changed)

	w.handleEvent(fsnotify.Event{Name: "/src/a.py", Op: fsnotify.Write})
	// A second change while one is pending must not block.
	w.handleEvent(fsnotify.Event{Name: "/src/b.py", Op: fsnotify.Create})

	require.Len(t, changed, 1)
	assert.Equal(t, "/src/a.py", <-changed)
}

func TestSourceWatcher_SettingsSurvivesRenameSave(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	settings := filepath.Join(root, "setup.cfg")
	require.NoError(t, os.WriteFile(settings, []byte("[flake8]\n"), 0o644))

	changed := make(chan string, 1)
	w, err := newSourceWatcher([]string{src}, settings, nil, changed)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	require.Eventually(t, func() bool { return len(w.watcher.WatchList()) == 2 },
		5*time.Second, 10*time.Millisecond)

	// Sources beside the settings file are outside the targets.
	require.NoError(t, os.WriteFile(filepath.Join(root, "setup.py"), []byte("x = 1\n"), 0o644))

	save := func(body string) {
		tmp := filepath.Join(root, ".setup.cfg.tmp")
		require.NoError(t, os.WriteFile(tmp, []byte(body), 0o644))
		require.NoError(t, os.Rename(tmp, settings))
	}
	expectSettings := func() {
		t.Helper()
		select {
		case path := <-changed:
			assert.Equal(t, settings, path)
		case <-time.After(5 * time.Second):
			t.Fatal("settings change not seen")
		}
		// Let the rest of this save's events arrive and drop them.
		time.Sleep(100 * time.Millisecond)
		select {
		case <-changed:
		default:
		}
	}

	save("[flake8]\nmax-line-length = 100\n")
	expectSettings()

	save("[flake8]\nmax-line-length = 120\n")
	expectSettings()
}

func TestSourceWatcher_StartStopsOnCancel(t *testing.T) {
	w, _ := newTestWatcher(t, "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunWatch_RerunsOnChange(t *testing.T) {
	p := newProject(t, cliReport, cliStats, "1", "")
	cfg, _, err := config.Load(p.config)
	require.NoError(t, err)
	cfg.Watch = config.WatchConfig{Listen: "127.0.0.1:0", Debounce: 20 * time.Millisecond}

	var out bytes.Buffer
	a := &app{
		stdout:  &out,
		stderr:  io.Discard,
		cfg:     cfg,
		logger:  logging.New(logging.Config{Level: logging.LevelError, Writer: io.Discard}),
		printer: ux.NewPlainPrinter(&out),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- a.runWatch(ctx, ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("watch exited early: %v", err)
	}
	require.NotEmpty(t, addr)

	runs := func() int {
		resp, err := http.Get("http://" + addr + "/v1/report")
		if err != nil {
			return 0
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0
		}
		var body reportResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return 0
		}
		return body.Runs
	}

	require.Eventually(t, func() bool { return runs() >= 1 }, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "src", "new.py"), []byte("x = 1\n"), 0o644))
	require.Eventually(t, func() bool { return runs() >= 2 }, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, out.String(), "SUMMARY\tissues=3")
}

func TestRunWatch_ListenError(t *testing.T) {
	p := newProject(t, "", "", "0", "")
	cfg, _, err := config.Load(p.config)
	require.NoError(t, err)
	cfg.Watch.Listen = "127.0.0.1:99999"

	a := &app{
		stdout:  io.Discard,
		stderr:  io.Discard,
		cfg:     cfg,
		logger:  logging.New(logging.Config{Level: logging.LevelError, Writer: io.Discard}),
		printer: ux.NewPlainPrinter(io.Discard),
	}

	err = a.runWatch(context.Background(), nil)
	assert.ErrorContains(t, err, "listen on 127.0.0.1:99999")
}
