// Package filter selects records by symbol using wildcard patterns such as
// "xpc_connection_*". Patterns are anchored at the start of the symbol only,
// so "xpc_*" also matches "xpc_connection_send_message_with_reply".
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// SymbolFilter matches symbols against a set of wildcard patterns.
// An empty filter matches everything.
type SymbolFilter struct {
	patterns []string
	exprs    []*regexp.Regexp
}

// New compiles patterns. Empty patterns are ignored.
func New(patterns []string) (*SymbolFilter, error) {
	f := &SymbolFilter{}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		f.patterns = append(f.patterns, pattern)
		f.exprs = append(f.exprs, re)
	}
	return f, nil
}

// compile turns a wildcard pattern into a start-anchored regular expression.
func compile(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*"))
}

// Match reports whether symbol matches any pattern.
func (f *SymbolFilter) Match(symbol string) bool {
	if f == nil || len(f.exprs) == 0 {
		return true
	}
	for _, re := range f.exprs {
		if re.MatchString(symbol) {
			return true
		}
	}
	return false
}

// Patterns returns the active patterns.
func (f *SymbolFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	return f.patterns
}
