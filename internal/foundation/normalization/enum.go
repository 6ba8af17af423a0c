// Package normalization maps free-form configuration strings onto closed
// string enums.
package normalization

import (
	"fmt"
	"slices"
	"strings"
)

// Enum normalizes raw strings to one of a fixed set of values of T.
// Matching ignores case and surrounding whitespace; aliases may map several
// spellings to the same value.
type Enum[T ~string] struct {
	name     string
	values   map[string]T
	fallback T
}

// NewEnum builds an Enum named name (used in error messages). The canonical
// spelling of every value is always accepted; aliases add more spellings.
func NewEnum[T ~string](name string, fallback T, values []T, aliases map[string]T) *Enum[T] {
	e := &Enum[T]{name: name, values: make(map[string]T, len(values)+len(aliases)), fallback: fallback}
	for _, v := range values {
		e.values[clean(string(v))] = v
	}
	for k, v := range aliases {
		e.values[clean(k)] = v
	}
	return e
}

// Normalize returns the value raw names. An empty raw yields the fallback.
func (e *Enum[T]) Normalize(raw string) (T, error) {
	c := clean(raw)
	if c == "" {
		return e.fallback, nil
	}
	if v, ok := e.values[c]; ok {
		return v, nil
	}
	return e.fallback, fmt.Errorf("invalid %s %q, valid options: %s", e.name, raw, strings.Join(e.Keys(), ", "))
}

// Valid reports whether v is one of the enum's values.
func (e *Enum[T]) Valid(v T) bool {
	for _, known := range e.values {
		if known == v {
			return true
		}
	}
	return false
}

// Keys lists the accepted spellings in ascending order.
func (e *Enum[T]) Keys() []string {
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
