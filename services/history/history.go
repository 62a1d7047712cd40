// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history keeps a local record of lint runs in BadgerDB.
//
// Each run is stored as one JSON value under
//
//	run/<UTC start time, fixed-width nanoseconds>/<run id>
//
// Keys sort chronologically, so a reverse prefix scan yields the newest
// runs first. History is optional; an empty directory disables it.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/lintrun/services/lint"
)

const keyPrefix = "run/"

// keyTimeLayout is fixed width so keys sort chronologically. RFC3339Nano
// drops trailing zeros, which breaks byte ordering.
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrClosed is returned when the store is used after Close.
	ErrClosed = errors.New("history store is closed")

	// ErrInvalidRecord is returned when a record cannot be stored.
	ErrInvalidRecord = errors.New("invalid history record")
)

// Record is the persisted summary of one run.
type Record struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMillis int64          `json:"duration_ms"`
	Total          int            `json:"total"`
	ByRule         map[string]int `json:"by_rule,omitempty"`
	Blocking       int            `json:"blocking"`
	ExitCode       int            `json:"exit_code"`
}

// NewRecord summarizes a run result.
func NewRecord(result *lint.RunResult) Record {
	rec := Record{
		RunID:          result.RunID,
		StartedAt:      result.StartedAt.UTC(),
		DurationMillis: result.Duration.Milliseconds(),
		Total:          result.IssueCount(),
		Blocking:       len(result.Blocking),
		ExitCode:       result.ExitCode(),
	}
	if result.Report != nil {
		rec.ByRule = result.Report.CountByRule()
	}
	return rec
}

// Key returns the badger key for the record.
func (r Record) Key() []byte {
	return []byte(keyPrefix + r.StartedAt.UTC().Format(keyTimeLayout) + "/" + r.RunID)
}

// Config holds configuration for the history store.
type Config struct {
	// Dir is the directory for BadgerDB files. Ignored when InMemory is true.
	Dir string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal messages. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns a durable on-disk configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store persists run records.
//
// Thread Safety: Safe for concurrent use. BadgerDB serializes writes.
type Store struct {
	db *badger.DB
}

// Open opens or creates the history store.
//
// Description:
//
//	Opens a BadgerDB database in cfg.Dir, creating the directory if needed,
//	or an in-memory database when cfg.InMemory is set.
//
// Inputs:
//
//	cfg - Store configuration. Dir is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the directory is invalid or badger fails to open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("history directory is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes one record.
func (s *Store) Save(rec Record) error {
	if s.db == nil {
		return ErrClosed
	}
	if rec.RunID == "" || rec.StartedAt.IsZero() {
		return fmt.Errorf("%w: run id and start time are required", ErrInvalidRecord)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.RunID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rec.Key(), data)
	})
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last possible key.
		for it.Seek([]byte(keyPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Latest returns the newest record, or false if none exist.
func (s *Store) Latest() (Record, bool, error) {
	records, err := s.List(1)
	if err != nil || len(records) == 0 {
		return Record{}, false, err
	}
	return records[0], true, nil
}

// Prune deletes all but the newest keep records and returns how many were
// removed.
func (s *Store) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	records, err := s.List(0)
	if err != nil {
		return 0, err
	}
	if len(records) <= keep {
		return 0, nil
	}

	stale := records[keep:]
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, rec := range stale {
		if err := wb.Delete(rec.Key()); err != nil {
			return 0, fmt.Errorf("delete %s: %w", rec.RunID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush prune: %w", err)
	}
	return len(stale), nil
}

// Close releases the database. Safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
