package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// Map associates product names with per-product configuration via an ordered
// list of regular-expression rules. Lookup is first-match-wins in list
// order; a key matches when its regex matches at the start of the product
// name.
type Map[T any] struct {
	rules []rule[T]
}

type rule[T any] struct {
	raw   string
	key   *regexp.Regexp
	value T
}

// Entry is one (pattern, value) pair as it appears in configuration.
type Entry[T any] struct {
	Key   string
	Value T
}

func Compile[T any](entries []Entry[T]) (*Map[T], error) {
	m := &Map[T]{}
	for _, e := range entries {
		re, err := compileAnchored(e.Key)
		if err != nil {
			return nil, fmt.Errorf("patterns: invalid key %q: %w", e.Key, err)
		}
		m.rules = append(m.rules, rule[T]{raw: e.Key, key: re, value: e.Value})
	}
	return m, nil
}

// Lookup returns the value of the first rule matching productName. The
// second result is false when no rule matches or the map is empty.
func (m *Map[T]) Lookup(productName string) (T, bool) {
	var zero T
	if m == nil {
		return zero, false
	}
	for _, r := range m.rules {
		if r.key.MatchString(productName) {
			return r.value, true
		}
	}
	return zero, false
}

func (m *Map[T]) Empty() bool {
	return m == nil || len(m.rules) == 0
}

// compileAnchored gives match-from-start semantics: the pattern has to match
// a prefix of the input, not necessarily the whole string.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^(?:" + pattern + ")"
	}
	return regexp.Compile(pattern)
}

// CompileEntityPatterns compiles a list of affected-entity patterns with the
// same match-from-start semantics used for map keys.
func CompileEntityPatterns(pats []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(pats))
	for _, p := range pats {
		re, err := compileAnchored(p)
		if err != nil {
			return nil, fmt.Errorf("patterns: invalid entity pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
