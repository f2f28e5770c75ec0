package errors

import "maps"

// ErrorContext holds the structured values attached to an error, such as
// the platform, arch or library it concerns.
type ErrorContext map[string]any

// Set stores value under key, allocating the map if needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = ErrorContext{}
	}
	c[key] = value
	return c
}

// Get returns the value stored under key.
func (c ErrorContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Merge returns a new context holding c overlaid by other. Neither input is
// modified unless one of them is empty.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	switch {
	case len(c) == 0:
		return other
	case len(other) == 0:
		return c
	}
	out := maps.Clone(c)
	maps.Copy(out, other)
	return out
}
