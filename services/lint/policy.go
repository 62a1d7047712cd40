// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"strings"
)

// =============================================================================
// RULE POLICY
// =============================================================================

// RulePolicy decides which flake8 codes count as blocking.
//
// Description:
//
//	Rules are matched by prefix. "E9" matches "E999", "F" matches every
//	pyflakes code. Only used by the policy exit mode; the artifacts are
//	never filtered.
//
// Thread Safety: Treat as immutable after creation.
type RulePolicy struct {
	// BlockOn are rules that fail the run.
	BlockOn []string `yaml:"block_on"`

	// WarnOn are rules that are reported but do not fail the run.
	WarnOn []string `yaml:"warn_on"`

	// Ignore are rules that are demoted to info.
	Ignore []string `yaml:"ignore"`
}

// DefaultPolicy blocks on the same selection flake8's own documentation
// recommends for CI gating: syntax errors and undefined names.
var DefaultPolicy = RulePolicy{
	BlockOn: []string{"E9", "F63", "F7", "F82"},
	WarnOn:  []string{"E", "W", "C", "F"},
}

// Clone returns a deep copy of the policy.
func (p *RulePolicy) Clone() RulePolicy {
	return RulePolicy{
		BlockOn: append([]string(nil), p.BlockOn...),
		WarnOn:  append([]string(nil), p.WarnOn...),
		Ignore:  append([]string(nil), p.Ignore...),
	}
}

// ShouldBlock returns true if the rule should fail the run.
func (p *RulePolicy) ShouldBlock(rule string) bool {
	return matchesAny(rule, p.BlockOn)
}

// ShouldWarn returns true if the rule should produce a warning.
func (p *RulePolicy) ShouldWarn(rule string) bool {
	return matchesAny(rule, p.WarnOn)
}

// ShouldIgnore returns true if the rule should be ignored.
func (p *RulePolicy) ShouldIgnore(rule string) bool {
	return matchesAny(rule, p.Ignore)
}

// GetSeverity returns the severity for a rule based on policy.
//
// Description:
//
//	Ignore takes precedence, then BlockOn, then WarnOn. Rules matching
//	none of the lists keep the severity implied by their code prefix.
func (p *RulePolicy) GetSeverity(rule string) Severity {
	if p.ShouldIgnore(rule) {
		return SeverityInfo
	}
	if p.ShouldBlock(rule) {
		return SeverityError
	}
	if p.ShouldWarn(rule) {
		return SeverityWarning
	}
	return SeverityForRule(rule)
}

// ApplyPolicy re-grades issues and returns the blocking subset.
//
// Description:
//
//	Severity is rewritten in place according to the policy. Issues whose
//	rule matches BlockOn (and not Ignore) are returned as blocking.
//
// Inputs:
//
//	issues - Issues parsed from the full report
//	policy - The policy to apply. Nil uses DefaultPolicy.
//
// Outputs:
//
//	[]Issue - Blocking issues, in input order
func ApplyPolicy(issues []Issue, policy *RulePolicy) []Issue {
	if policy == nil {
		policy = &DefaultPolicy
	}

	applySeverities(issues, policy)

	var blocking []Issue
	for _, issue := range issues {
		if issue.Severity == SeverityError && policy.ShouldBlock(issue.Rule) {
			blocking = append(blocking, issue)
		}
	}
	return blocking
}

// applySeverities rewrites each issue's severity in place.
func applySeverities(issues []Issue, policy *RulePolicy) {
	if policy == nil {
		policy = &DefaultPolicy
	}
	for i := range issues {
		issues[i].Severity = policy.GetSeverity(issues[i].Rule)
	}
}

func matchesAny(rule string, patterns []string) bool {
	rule = strings.ToUpper(rule)
	for _, pattern := range patterns {
		if matchesRule(rule, strings.ToUpper(pattern)) {
			return true
		}
	}
	return false
}

// matchesRule checks if a rule matches a pattern.
// Examples:
//   - "E501" matches "E501"
//   - "E501" matches "E5" and "E"
//   - "E501" does not match "E50X"
func matchesRule(rule, pattern string) bool {
	if pattern == "" {
		return false
	}
	return strings.HasPrefix(rule, pattern)
}
