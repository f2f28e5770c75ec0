// Package gnargs models an ordered GN argument set and renders it in the
// args.gn syntax.
package gnargs

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Kind is the GN value type.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindList
	KindRaw
)

// Value is one GN value. Construct it with Str, Bool, Int, List or Raw.
type Value struct {
	kind  Kind
	str   string
	b     bool
	i     int
	items []string
}

func Str(s string) Value         { return Value{kind: KindString, str: s} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int) Value            { return Value{kind: KindInt, i: i} }
func Raw(expr string) Value      { return Value{kind: KindRaw, str: expr} }
func List(items ...string) Value { return Value{kind: KindList, items: append([]string(nil), items...)} }

// Kind returns the value type.
func (v Value) Kind() Kind { return v.kind }

// Render returns the GN literal for v.
func (v Value) Render() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.Itoa(v.i)
	case KindList:
		quoted := make([]string, len(v.items))
		for i, item := range v.items {
			quoted[i] = quote(item)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	case KindRaw:
		return v.str
	default:
		return quote(v.str)
	}
}

func (v Value) String() string { return v.Render() }

// Equal reports whether two values render identically.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.Render() == other.Render()
}

// quote escapes per GN string rules: backslash, double quote and dollar.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '$':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// Entry is one key/value pair of a layer.
type Entry struct {
	Key   string
	Value Value
}

// Layer is a named, ordered overlay.
type Layer struct {
	Name    string
	Entries []Entry
}

// Add appends an entry and returns the layer for chaining.
func (l *Layer) Add(key string, v Value) *Layer {
	l.Entries = append(l.Entries, Entry{Key: key, Value: v})
	return l
}

// Config is an insertion-ordered GN argument set. The zero value is ready to use.
type Config struct {
	keys   []string
	values map[string]Value
	origin map[string]string
}

// Set assigns key. An existing key keeps its position and takes the new value.
func (c *Config) Set(key string, v Value) {
	c.set(key, v, "")
}

func (c *Config) set(key string, v Value, layer string) {
	if c.values == nil {
		c.values = make(map[string]Value)
		c.origin = make(map[string]string)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = v
	c.origin[key] = layer
}

// Overlay applies every entry of l in order. Later entries replace earlier ones.
func (c *Config) Overlay(l Layer) {
	for _, e := range l.Entries {
		c.set(e.Key, e.Value, l.Name)
	}
}

// Get returns the value for key.
func (c *Config) Get(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Origin returns the name of the layer that last set key.
func (c *Config) Origin(key string) string {
	return c.origin[key]
}

// Keys returns keys in insertion order.
func (c *Config) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len returns the number of keys.
func (c *Config) Len() int { return len(c.keys) }

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	out := &Config{
		keys:   append([]string(nil), c.keys...),
		values: make(map[string]Value, len(c.values)),
		origin: make(map[string]string, len(c.origin)),
	}
	for k, v := range c.values {
		out.values[k] = v
	}
	for k, o := range c.origin {
		out.origin[k] = o
	}
	return out
}

// Render returns `key = value` lines in key order.
func (c *Config) Render() string {
	var b strings.Builder
	for _, k := range c.keys {
		b.WriteString(k)
		b.WriteString(" = ")
		b.WriteString(c.values[k].Render())
		b.WriteByte('\n')
	}
	return b.String()
}

// Inline renders the config on one line for `gn gen --args=`.
func (c *Config) Inline() string {
	parts := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		parts = append(parts, k+"="+c.values[k].Render())
	}
	return strings.Join(parts, " ")
}

// Hash is the hex sha256 of Render.
func (c *Config) Hash() string {
	sum := sha256.Sum256([]byte(c.Render()))
	return hex.EncodeToString(sum[:])
}
