// Package patch applies local source modifications on top of the pinned
// upstream tree. Application is idempotent: a patch whose reverse applies
// cleanly is already present and is skipped.
package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Outcome is the result of applying one patch.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "skipped-already-applied"
	OutcomeFailed         Outcome = "failed-non-fatal"
)

// Present reports whether the patch is in the tree after processing.
func (o Outcome) Present() bool {
	return o == OutcomeApplied || o == OutcomeAlreadyApplied
}

// Record is one patch file routed to a target subtree.
type Record struct {
	Name string
	// TargetPrefix is the subdirectory of the source root the patch applies in.
	TargetPrefix string
	Body         []byte
	Strip        int
}

// Digest is the hex sha256 of the patch body.
func (r Record) Digest() string {
	sum := sha256.Sum256(r.Body)
	return hex.EncodeToString(sum[:])
}

// SetDigest identifies an ordered patch set, including where each patch is
// routed. It is empty for an empty set.
func SetDigest(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	h := sha256.New()
	for _, r := range records {
		_, _ = fmt.Fprintf(h, "%s\x00%s\x00%d\x00%s\n", r.Name, r.TargetPrefix, r.Strip, r.Digest())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Target routes patches whose file name starts with Prefix into Path.
type Target struct {
	Prefix string
	Path   string
	Strip  int
}

// Load reads every *.patch file in dir in lexicographic order. Each file is
// routed to the target with the longest matching prefix, else the source root.
// A missing directory yields no records.
func Load(dir string, defaultStrip int, targets []Target) ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.patch"))
	if err != nil {
		return nil, fmt.Errorf("list patches: %w", err)
	}
	sort.Strings(matches)

	records := make([]Record, 0, len(matches))
	for _, path := range matches {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read patch %s: %w", path, err)
		}
		name := filepath.Base(path)
		rec := Record{Name: name, Body: body, Strip: defaultStrip}
		if t, ok := routeTarget(name, targets); ok {
			rec.TargetPrefix = filepath.ToSlash(t.Path)
			if t.Strip > 0 {
				rec.Strip = t.Strip
			}
		}
		if rec.Strip <= 0 {
			rec.Strip = 1
		}
		records = append(records, rec)
	}
	return records, nil
}

func routeTarget(name string, targets []Target) (Target, bool) {
	best := -1
	for i, t := range targets {
		if !strings.HasPrefix(name, t.Prefix) {
			continue
		}
		if best < 0 || len(t.Prefix) > len(targets[best].Prefix) {
			best = i
		}
	}
	if best < 0 {
		return Target{}, false
	}
	return targets[best], true
}
