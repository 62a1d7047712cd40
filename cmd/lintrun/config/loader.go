// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads lintrun.yaml.
//
// Lookup order:
//
//  1. the --config-file flag
//  2. the LINTRUN_CONFIG environment variable
//  3. ./lintrun.yaml
//  4. built-in defaults
//
// A missing explicit file (1 or 2) is an error; a missing ./lintrun.yaml is
// not. Keys absent from the file keep their default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/lintrun/pkg/validation"
)

const (
	// EnvConfigPath names the config file when no flag is given.
	EnvConfigPath = "LINTRUN_CONFIG"

	// DefaultFileName is looked up in the working directory.
	DefaultFileName = "lintrun.yaml"
)

// ErrInvalidConfig wraps decode and validation failures.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Load resolves, reads and validates the configuration.
//
// Description:
//
//	explicit is the --config-file flag value. The returned source is the
//	file that was read, or "" when only defaults apply.
//
// Outputs:
//
//	*LintrunConfig - Effective configuration
//	string - Source file path, "" for defaults
//	error - Missing explicit file, YAML error or validation error
func Load(explicit string) (*LintrunConfig, string, error) {
	path, required := resolvePath(explicit)

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !required:
		return &cfg, "", Validate(&cfg)
	default:
		return nil, path, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := Decode(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, path, nil
}

func resolvePath(explicit string) (path string, required bool) {
	if explicit != "" {
		return explicit, true
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, true
	}
	return filepath.Join(".", DefaultFileName), false
}

// Decode overlays YAML onto cfg. Unknown keys are rejected so that a typo
// does not silently fall back to a default. Empty input leaves cfg as is.
func Decode(data []byte, cfg *LintrunConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks struct tags, cross-field rules, linter targets and
// policy rule prefixes. Rule prefixes are upper-cased in place.
func Validate(cfg *LintrunConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: %s failed %q (got %v)", ErrInvalidConfig, first.Namespace(), first.Tag(), first.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, target := range cfg.Linter.Targets {
		if err := validation.ValidateTarget(target); err != nil {
			return fmt.Errorf("%w: linter.targets: %v", ErrInvalidConfig, err)
		}
	}
	for _, list := range []struct {
		name     string
		prefixes *[]string
	}{
		{"policy.block_on", &cfg.Policy.BlockOn},
		{"policy.warn_on", &cfg.Policy.WarnOn},
		{"policy.ignore", &cfg.Policy.Ignore},
	} {
		clean, err := validation.SanitizeRulePrefixes(*list.prefixes)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, list.name, err)
		}
		*list.prefixes = clean
	}
	if cfg.ExitMode == "" {
		cfg.ExitMode = ExitPropagate
	}
	return nil
}

// Marshal renders the configuration as YAML.
func Marshal(cfg *LintrunConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is not overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	cfg := DefaultConfig()
	data, err := Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
