package assemble

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/libforge/internal/catalog"
	"git.home.luguber.info/inful/libforge/internal/executor"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/observability"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

// generatedPrefix marks header rules rooted in the backend build directory
// rather than the source tree.
const generatedPrefix = "out/"

// installHeaders copies the plan's header subtrees and backend-provided
// headers into the shared include directory.
func (a *Assembler) installHeaders(ctx context.Context, plan *resolve.Plan, results []executor.ArchResult, srcDir string) error {
	includeDir := a.layout.IncludeDir()
	rules := append(a.catalog.Headers(plan.EffectiveVariant), a.headers...)

	written := 0
	for _, rule := range rules {
		base := srcDir
		if strings.HasPrefix(rule.Source, generatedPrefix) {
			base = results[0].WorkDir
		}
		n, err := a.copyTree(filepath.Join(base, rule.Source), filepath.Join(includeDir, rule.Dest), rule)
		if err != nil {
			return err
		}
		written += n
	}

	seen := make(map[string]bool)
	for _, r := range results {
		for _, h := range r.Artifacts.Headers {
			if seen[h.Dest] {
				continue
			}
			seen[h.Dest] = true
			ok, err := a.installShared(h.Src, filepath.Join(includeDir, h.Dest))
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
	}

	observability.DebugContext(ctx, "Headers installed", logfields.Path(includeDir), logfields.Name(plan.Name()),
		slog.Int("written", written))
	return nil
}

// copyTree copies files under root matching the rule pattern, keeping their
// relative layout. A missing root is not an error; optional subtrees such as
// generated headers only exist for some variants.
func (a *Assembler) copyTree(root, dest string, rule catalog.HeaderRule) (int, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return 0, nil
	}
	pattern := rule.Pattern
	if pattern == "" {
		pattern = "*"
	}

	written := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		wrote, err := a.installShared(path, filepath.Join(dest, rel))
		if wrote {
			written++
		}
		return err
	})
	if err != nil {
		return written, errors.FileSystemError("failed to copy headers").
			WithCause(err).
			WithContext("source", rule.Source).
			Build()
	}
	return written, nil
}

// installShared writes into the include directory shared by every plan.
func (a *Assembler) installShared(src, dst string) (bool, error) {
	a.includeMu.Lock()
	defer a.includeMu.Unlock()
	wrote, err := installFile(src, dst)
	if err != nil {
		return false, errors.FileSystemError("failed to install header").
			WithCause(err).
			WithContext("path", dst).
			Build()
	}
	return wrote, nil
}
