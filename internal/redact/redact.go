// Package redact scrubs secrets from snippets before they reach a pack.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Redactor rewrites text so that it is safe to publish.
type Redactor interface {
	Redact(text string) string
}

// Nop returns its input unchanged.
type Nop struct{}

// Redact implements Redactor.
func (Nop) Redact(text string) string { return text }

// Patterns replaces every match of a set of regular expressions. When a
// pattern has a capture group, the first group is kept and the rest of the
// match becomes "[REDACTED]" ("api_key: [REDACTED]"); otherwise the whole
// match is replaced.
type Patterns struct {
	rules []rule
}

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// Placeholder is the text substituted for a secret.
const Placeholder = "[REDACTED]"

// NewPatterns compiles the given expressions. Safe for concurrent use once built.
func NewPatterns(patterns []string) (*Patterns, error) {
	p := &Patterns{rules: make([]rule, 0, len(patterns))}
	for _, expr := range patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling redact pattern %q: %w", expr, err)
		}
		replacement := Placeholder
		if re.NumSubexp() > 0 {
			replacement = "${1}: " + Placeholder
		}
		p.rules = append(p.rules, rule{re: re, replacement: replacement})
	}
	return p, nil
}

// Redact implements Redactor.
func (p *Patterns) Redact(text string) string {
	for _, r := range p.rules {
		text = r.re.ReplaceAllString(text, r.replacement)
	}
	return text
}

// New returns a Patterns redactor when enabled, otherwise Nop.
func New(enabled bool, patterns []string) (Redactor, error) {
	if !enabled || len(patterns) == 0 {
		return Nop{}, nil
	}
	return NewPatterns(patterns)
}

// KeepLines redacts text with r and guarantees the result has as many lines
// as the input. If a pattern swallowed or added a newline, each line is
// redacted on its own instead.
func KeepLines(r Redactor, text string) string {
	out := r.Redact(text)
	if strings.Count(out, "\n") == strings.Count(text, "\n") {
		return out
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.ReplaceAll(r.Redact(l), "\n", " ")
	}
	return strings.Join(lines, "\n")
}
