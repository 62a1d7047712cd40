// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for values that
// end up on a linter command line.
//
// Targets and extra arguments are passed to a subprocess as separate argv
// entries, so there is no shell injection, but a value starting with "-"
// is still read by flake8 as an option. Rule prefixes are matched
// case-sensitively, so a lowercase prefix would silently never match.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// rulePrefixPattern matches flake8 rule codes and code prefixes.
// Allows: 1-3 uppercase letters followed by up to 3 digits (E, E9, E501, ABC123)
// This is the same shape flake8 accepts for --select and --ignore.
var rulePrefixPattern = regexp.MustCompile(`^[A-Z]{1,3}[0-9]{0,3}$`)

// ValidateRulePrefix validates a rule code or prefix from a policy list.
//
// Valid prefixes:
//   - 1-3 uppercase letters A-Z
//   - followed by 0-3 digits
//
// Example:
//
//	if err := validation.ValidateRulePrefix(prefix); err != nil {
//	    return fmt.Errorf("policy.block_on: %w", err)
//	}
func ValidateRulePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("rule prefix cannot be empty")
	}

	if !rulePrefixPattern.MatchString(prefix) {
		return fmt.Errorf("invalid rule prefix: %q (must be 1-3 uppercase letters followed by up to 3 digits)", prefix)
	}

	return nil
}

// SanitizeRulePrefix normalizes and validates a rule prefix.
// Returns the uppercase prefix if valid, or an error if invalid.
//
//	prefix, err := validation.SanitizeRulePrefix(" e501 ")
//	// prefix == "E501"
func SanitizeRulePrefix(prefix string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(prefix))
	if err := ValidateRulePrefix(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// SanitizeRulePrefixes normalizes every prefix with SanitizeRulePrefix.
// Returns an error listing all invalid prefixes if any fail validation.
func SanitizeRulePrefixes(prefixes []string) ([]string, error) {
	if prefixes == nil {
		return nil, nil
	}
	normalized := make([]string, 0, len(prefixes))
	var invalid []string
	for _, p := range prefixes {
		clean, err := SanitizeRulePrefix(p)
		if err != nil {
			invalid = append(invalid, p)
			continue
		}
		normalized = append(normalized, clean)
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid rule prefixes: %q", invalid)
	}
	return normalized, nil
}

// ValidateTarget validates a path passed to the linter as a positional
// argument.
//
// Rejected:
//   - empty paths
//   - paths starting with "-" (flake8 would parse them as options)
//   - paths containing NUL or newline characters
func ValidateTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("target cannot be empty")
	}
	if strings.HasPrefix(target, "-") {
		return fmt.Errorf("invalid target %q: must not start with '-' (prefix with ./ if the name really does)", target)
	}
	if strings.ContainsAny(target, "\x00\n\r") {
		return fmt.Errorf("invalid target %q: contains control characters", target)
	}
	return nil
}
