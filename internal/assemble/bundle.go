package assemble

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/observability"
	"git.home.luguber.info/inful/libforge/internal/platform"
)

// KindXCFramework bundles Apple device and simulator entries per library.
const KindXCFramework = "xcframework"

// BundleSpec names the platforms whose entries make up one bundle.
type BundleSpec struct {
	Name      string
	Kind      string
	Platforms []platform.Platform
}

// Bundle is the result of composing entries.
type Bundle struct {
	Name    string
	Outputs []string
	// Skipped lists entry groups that were not bundled, with the reason.
	Skipped []string
}

type bundleGroup struct {
	variant platform.Variant
	crt     platform.CRT
	config  platform.BuildType
}

func (g bundleGroup) dir(name string) string {
	d := name + "-" + string(g.variant)
	if g.crt == platform.CRTDynamic {
		d += "-md"
	}
	return filepath.Join(d, string(g.config))
}

// Bundle composes finalized entries. Entries are grouped by variant, CRT and
// config; a group missing any of the spec's platforms is skipped, which is
// how a failed component plan suppresses its bundle.
func (a *Assembler) Bundle(ctx context.Context, spec BundleSpec, entries []*Entry) (*Bundle, error) {
	if spec.Kind != KindXCFramework {
		return nil, errors.BundleError("unsupported bundle kind: " + spec.Kind).WithContext("bundle", spec.Name).Build()
	}
	if a.runner == nil {
		return nil, errors.InternalError("bundler has no process runner").Build()
	}

	groups := make(map[bundleGroup]map[platform.Platform]*Entry)
	for _, e := range entries {
		if !slices.Contains(spec.Platforms, e.Plan.Platform) {
			continue
		}
		key := bundleGroup{e.Plan.EffectiveVariant, e.Plan.CRT, e.Plan.Config}
		if groups[key] == nil {
			groups[key] = make(map[platform.Platform]*Entry)
		}
		groups[key][e.Plan.Platform] = e
	}
	keys := make([]bundleGroup, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].dir("") < keys[j].dir("") })

	out := &Bundle{Name: spec.Name}
	for _, key := range keys {
		group := groups[key]
		var missing []string
		for _, p := range spec.Platforms {
			if group[p] == nil {
				missing = append(missing, string(p))
			}
		}
		if len(missing) > 0 {
			reason := key.dir(spec.Name) + ": missing " + strings.Join(missing, ", ")
			out.Skipped = append(out.Skipped, reason)
			observability.WarnContext(ctx, "Bundle skipped", logfields.Name(spec.Name), logfields.Outcome(reason))
			continue
		}

		destDir := filepath.Join(a.layout.BundleDir(), key.dir(spec.Name))
		for _, lib := range commonLibraries(group, spec.Platforms) {
			libs := make([]string, 0, len(spec.Platforms))
			for _, p := range spec.Platforms {
				files := group[p].Files[lib]
				if len(files) != 1 {
					return nil, errors.BundleError("per-arch libraries cannot be bundled; build the entry universal").
						WithContext("bundle", spec.Name).
						WithContext("library", lib).
						WithContext("platform", string(p)).
						Build()
				}
				libs = append(libs, files[0])
			}
			dest := filepath.Join(destDir, lib+".xcframework")
			if err := a.xcframework(ctx, dest, libs); err != nil {
				return nil, err
			}
			out.Outputs = append(out.Outputs, dest)
		}
	}
	return out, nil
}

// xcframework builds into a temp directory next to dest and swaps it in.
func (a *Assembler) xcframework(ctx context.Context, dest string, libs []string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return errors.FileSystemError("failed to create bundle directory").WithCause(err).Build()
	}
	tmpDir, err := os.MkdirTemp(filepath.Dir(dest), ".bundle-*")
	if err != nil {
		return errors.FileSystemError("failed to create bundle temp directory").WithCause(err).Build()
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	tmpOut := filepath.Join(tmpDir, filepath.Base(dest))
	args := []string{"-create-xcframework"}
	for _, lib := range libs {
		args = append(args, "-library", lib)
	}
	args = append(args, "-output", tmpOut)

	cmd := execx.Command{Name: "xcodebuild", Args: args}
	res, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return errors.BundleError("xcodebuild could not run").WithCause(err).WithContext("command", cmd.String()).Build()
	}
	if !res.Success() {
		return errors.BundleError("xcodebuild failed").
			WithContext("command", cmd.String()).
			WithContext("exit_code", res.ExitCode).
			WithContext("output", res.Tail(20)).
			Build()
	}

	swap := &entryStage{dir: tmpOut, dest: dest}
	if err := swap.commit(); err != nil {
		return errors.FileSystemError("failed to install bundle").WithCause(err).WithContext("path", dest).Build()
	}
	observability.InfoContext(ctx, "Bundle written", logfields.Path(dest))
	return nil
}

// commonLibraries returns the libraries present in every platform's entry.
func commonLibraries(group map[platform.Platform]*Entry, platforms []platform.Platform) []string {
	var out []string
	for lib := range group[platforms[0]].Files {
		shared := true
		for _, p := range platforms[1:] {
			if _, ok := group[p].Files[lib]; !ok {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, lib)
		}
	}
	sort.Strings(out)
	return out
}
