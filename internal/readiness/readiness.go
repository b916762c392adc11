// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Agentready - governance tooling that scores OpenAPI documents for consumption by AI agents
and records the resulting readiness level against versioned resources in an API registry.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package readiness maps linter findings onto a discrete readiness level.
//
// Only Error and Warning findings influence the level. Info and Hint findings
// are counted for reporting and otherwise ignored.
package readiness

import (
	"fmt"
	"strings"
)

// Severity is the ordered severity of a single finding.
// Numeric values follow the Spectral convention: lower is more severe.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return s >= SeverityError && s <= SeverityHint
}

// MoreSevereThan reports whether s ranks above other.
func (s Severity) MoreSevereThan(other Severity) bool {
	return s < other
}

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity accepts the names linters commonly emit.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err", "0":
		return SeverityError, nil
	case "warning", "warn", "1":
		return SeverityWarning, nil
	case "info", "information", "2":
		return SeverityInfo, nil
	case "hint", "3":
		return SeverityHint, nil
	}
	return 0, &InvalidSeverityError{Index: -1, Raw: s}
}

// Finding is one rule violation or notice reported by a linter.
type Finding struct {
	Code     string   `json:"code,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     []string `json:"path,omitempty"`
	Source   string   `json:"source,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Location renders Path as a dotted locator, e.g. "paths./orders.get".
func (f Finding) Location() string {
	return strings.Join(f.Path, ".")
}

// Level is the readiness classification. Levels are totally ordered
// Low < Medium < High; the zero value is not a valid level.
type Level int

const (
	LevelLow Level = iota + 1
	LevelMedium
	LevelHigh
)

// Levels returns all levels in ascending order.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}

// Valid reports whether l is one of the three levels.
func (l Level) Valid() bool {
	return l >= LevelLow && l <= LevelHigh
}

// ID is the allowed-value id stored in the registry.
func (l Level) ID() string {
	if !l.Valid() {
		return ""
	}
	return "readiness_" + l.String()
}

// DisplayName is the human readable allowed-value name.
func (l Level) DisplayName() string {
	switch l {
	case LevelLow:
		return "Low"
	case LevelMedium:
		return "Medium"
	case LevelHigh:
		return "High"
	default:
		return ""
	}
}

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// AtLeast reports whether l meets or exceeds floor.
func (l Level) AtLeast(floor Level) bool {
	return l >= floor
}

// ParseLevel accepts either the short name ("medium") or the registry id
// ("readiness_medium").
func ParseLevel(s string) (Level, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "readiness_")
	for _, l := range Levels() {
		if l.String() == v {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown readiness level %q (want low, medium or high)", s)
}
