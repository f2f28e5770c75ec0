// Package normalization maps loosely formatted user input (CLI flags, YAML
// values) onto closed enumerations.
package normalization

import (
	"slices"
	"strings"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
)

// Normalizer maps spellings onto the values of one enumeration. Lookups
// ignore case and surrounding space. Several spellings may share a value.
type Normalizer[T comparable] struct {
	name     string
	byKey    map[string]T
	keys     []string
	fallback T
}

// NewNormalizer builds a normalizer named after the flag or field it
// parses. fallback is returned for empty input.
func NewNormalizer[T comparable](name string, spellings map[string]T, fallback T) *Normalizer[T] {
	n := &Normalizer[T]{name: name, byKey: make(map[string]T, len(spellings)), fallback: fallback}
	for k, v := range spellings {
		k = fold(k)
		n.byKey[k] = v
		n.keys = append(n.keys, k)
	}
	slices.Sort(n.keys)
	return n
}

// Normalize is Parse without the error: unknown input gives the fallback.
func (n *Normalizer[T]) Normalize(raw string) T {
	v, err := n.Parse(raw)
	if err != nil {
		return n.fallback
	}
	return v
}

// Parse returns the value raw names. Empty input gives the fallback and
// unknown input a validation error listing the accepted spellings.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	key := fold(raw)
	if key == "" {
		return n.fallback, nil
	}
	if v, ok := n.byKey[key]; ok {
		return v, nil
	}
	var zero T
	return zero, errors.ValidationError("invalid "+n.name+" \""+raw+"\", valid options: "+strings.Join(n.keys, ", ")).
		WithContext("field", n.name).
		WithContext("value", raw).
		Build()
}

func (n *Normalizer[T]) IsValid(raw string) bool {
	_, ok := n.byKey[fold(raw)]
	return ok
}

// ValidKeys returns a sorted copy of the accepted spellings.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.keys)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
