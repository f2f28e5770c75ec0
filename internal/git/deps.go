package git

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"regexp"
	"strings"
)

// Dep is one entry of an upstream DEPS file.
type Dep struct {
	Path     string
	URL      string
	Revision string
}

var depEntry = regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"@\s]+)@([^"\s]+)"`)

// ReadDeps parses the DEPS file at path.
func ReadDeps(path string) ([]Dep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDeps(data), nil
}

// ParseDeps extracts `"path": "url@rev"` entries from the deps block in
// file order. Entries built from Var() or without a pinned revision are skipped.
func ParseDeps(data []byte) []Dep {
	var deps []Dep
	depth := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if depth == 0 {
			if strings.HasPrefix(line, "deps") && strings.HasSuffix(line, "{") {
				depth = 1
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		// Only direct entries of the deps block; nested dicts are skipped.
		if depth == 1 {
			if m := depEntry.FindStringSubmatch(line); m != nil {
				deps = append(deps, Dep{Path: m[1], URL: m[2], Revision: m[3]})
			}
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			break
		}
	}
	return deps
}

// Excluded reports whether dep matches an exclusion by full path or last element.
func Excluded(dep string, exclusions []string) bool {
	for _, ex := range exclusions {
		ex = strings.TrimSuffix(ex, "/")
		if ex == dep || ex == path.Base(dep) {
			return true
		}
	}
	return false
}
