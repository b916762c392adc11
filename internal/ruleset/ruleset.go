// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ruleset loads and checks the linter ruleset file.
//
// A ruleset that does not parse or names an unknown severity cannot produce
// trustworthy findings, so it is rejected before the linter runs.
package ruleset

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bartekus/agentready/internal/readiness"
)

// SeverityOff marks a disabled rule.
const SeverityOff = "off"

// Rule is one entry of the rules map.
type Rule struct {
	Name        string
	Description string
	// Severity is the normalized severity name, SeverityOff, or empty when
	// the rule keeps the severity it inherits.
	Severity string
	Given    []string
	// Custom is true when the rule defines its own given/then rather than
	// adjusting an inherited rule.
	Custom bool

	line int
}

// Ruleset is a parsed ruleset file.
type Ruleset struct {
	Path    string
	Extends []string
	Rules   []Rule
}

type rawRuleset struct {
	Extends yaml.Node            `yaml:"extends"`
	Rules   map[string]yaml.Node `yaml:"rules"`
}

type rawRule struct {
	Description string    `yaml:"description"`
	Message     string    `yaml:"message"`
	Severity    yaml.Node `yaml:"severity"`
	Given       yaml.Node `yaml:"given"`
	Then        yaml.Node `yaml:"then"`
}

// Load reads and parses a YAML or JSON ruleset.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}
	rs.Path = path
	return rs, nil
}

// Parse decodes ruleset content.
func Parse(data []byte) (*Ruleset, error) {
	var raw rawRuleset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset YAML: %w", err)
	}

	rs := &Ruleset{Extends: extendsNames(&raw.Extends)}

	names := make([]string, 0, len(raw.Rules))
	for name := range raw.Rules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := raw.Rules[name]
		rule, err := parseRule(name, &node)
		if err != nil {
			return nil, err
		}
		rs.Rules = append(rs.Rules, rule)
	}
	return rs, nil
}

func extendsNames(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value == "" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		var out []string
		for _, item := range n.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				out = append(out, item.Value)
			case yaml.SequenceNode:
				// [name, "recommended"|"all"|"off"]
				if len(item.Content) > 0 {
					out = append(out, item.Content[0].Value)
				}
			}
		}
		return out
	}
	return nil
}

func parseRule(name string, n *yaml.Node) (Rule, error) {
	rule := Rule{Name: name, line: n.Line}

	switch n.Kind {
	case yaml.ScalarNode:
		sev, err := normalizeSeverity(n)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s (line %d): %w", name, n.Line, err)
		}
		rule.Severity = sev
		return rule, nil
	case yaml.MappingNode:
	default:
		return Rule{}, fmt.Errorf("rule %s (line %d): expected a severity or a mapping", name, n.Line)
	}

	var raw rawRule
	if err := n.Decode(&raw); err != nil {
		return Rule{}, fmt.Errorf("rule %s (line %d): %w", name, n.Line, err)
	}
	rule.Description = raw.Description

	if !raw.Severity.IsZero() {
		sev, err := normalizeSeverity(&raw.Severity)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s (line %d): %w", name, raw.Severity.Line, err)
		}
		rule.Severity = sev
	}

	switch raw.Given.Kind {
	case yaml.ScalarNode:
		rule.Given = []string{raw.Given.Value}
	case yaml.SequenceNode:
		for _, g := range raw.Given.Content {
			rule.Given = append(rule.Given, g.Value)
		}
	}
	rule.Custom = len(rule.Given) > 0 || !raw.Then.IsZero()
	return rule, nil
}

// normalizeSeverity accepts names, Spectral's numeric levels (-1 is off)
// and booleans (false is off, true keeps the inherited severity).
func normalizeSeverity(n *yaml.Node) (string, error) {
	v := strings.ToLower(strings.TrimSpace(n.Value))
	switch v {
	case SeverityOff, "-1", "false":
		return SeverityOff, nil
	case "true":
		return "", nil
	}
	if i, err := strconv.Atoi(v); err == nil {
		sev := readiness.Severity(i)
		if !sev.Valid() {
			return "", fmt.Errorf("unknown severity %d", i)
		}
		return sev.String(), nil
	}
	sev, err := readiness.ParseSeverity(v)
	if err != nil {
		return "", err
	}
	return sev.String(), nil
}

// Validate checks structural rules the linter would otherwise reject at
// run time.
func (r *Ruleset) Validate() error {
	if len(r.Extends) == 0 && len(r.Rules) == 0 {
		return errors.New("ruleset defines no rules and extends nothing")
	}
	for _, rule := range r.Rules {
		if !rule.Custom {
			continue
		}
		if len(rule.Given) == 0 {
			return fmt.Errorf("rule %s (line %d) has then but no given", rule.Name, rule.line)
		}
		for _, g := range rule.Given {
			if !strings.HasPrefix(g, "$") && !strings.HasPrefix(g, "#") {
				return fmt.Errorf("rule %s (line %d): given %q must be a JSONPath ($...) or alias (#...)", rule.Name, rule.line, g)
			}
		}
	}
	return nil
}

// Counts tallies enabled rules by their declared severity. Rules that
// inherit their severity are counted under "inherited".
func (r *Ruleset) Counts() map[string]int {
	out := make(map[string]int)
	for _, rule := range r.Rules {
		switch rule.Severity {
		case SeverityOff:
			out[SeverityOff]++
		case "":
			out["inherited"]++
		default:
			out[rule.Severity]++
		}
	}
	return out
}
