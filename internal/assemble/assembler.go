package assemble

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"git.home.luguber.info/inful/libforge/internal/catalog"
	"git.home.luguber.info/inful/libforge/internal/execx"
	"git.home.luguber.info/inful/libforge/internal/executor"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/manifest"
	"git.home.luguber.info/inful/libforge/internal/observability"
	"git.home.luguber.info/inful/libforge/internal/resolve"
	"git.home.luguber.info/inful/libforge/internal/workspace"
)

// Entry is one finalized distribution directory.
type Entry struct {
	Plan     *resolve.Plan
	Dir      string
	Manifest *manifest.BuildManifest
	// Files maps library name to absolute paths inside Dir: one merged file
	// for universal plans, one per arch otherwise, in plan arch order.
	Files map[string][]string
}

// Assembler writes distribution entries and bundles.
type Assembler struct {
	product string
	layout  *workspace.Layout
	catalog *catalog.Catalog
	merger  Merger
	runner  execx.Runner
	headers []catalog.HeaderRule
	inputs  manifest.Inputs

	// includeMu serializes writes into the shared include directory.
	includeMu sync.Mutex
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithHeaderRules adds header packaging rules beyond the catalog's.
func WithHeaderRules(rules ...catalog.HeaderRule) Option {
	return func(a *Assembler) { a.headers = append(a.headers, rules...) }
}

// WithInputs sets the run-wide manifest inputs (sources, deps, patches).
func WithInputs(in manifest.Inputs) Option {
	return func(a *Assembler) { a.inputs = in }
}

// WithRunner sets the process runner used by bundlers.
func WithRunner(r execx.Runner) Option {
	return func(a *Assembler) { a.runner = r }
}

// New creates an assembler for product.
func New(product string, layout *workspace.Layout, cat *catalog.Catalog, merger Merger, opts ...Option) *Assembler {
	if cat == nil {
		cat = catalog.Default()
	}
	a := &Assembler{product: product, layout: layout, catalog: cat, merger: merger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble finalizes one plan. The entry is built in a staging directory
// next to its final location and swapped in only once the manifest is
// written, so the published entry holds exactly the manifest's files. It
// writes nothing when any arch failed or a universal merge would conflict.
func (a *Assembler) Assemble(ctx context.Context, plan *resolve.Plan, results []executor.ArchResult, srcDir, argsHash string) (*Entry, error) {
	if len(results) == 0 {
		return nil, errors.InternalError("no arch results for " + plan.Key()).Build()
	}
	for _, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
	}

	names := libraryNames(results)
	universal := plan.Universal && len(results) > 1
	if universal {
		if a.merger == nil {
			return nil, errors.InternalError("universal plan without a merger").Build()
		}
		for _, name := range names {
			if inputs := inputsFor(results, name); len(inputs) > 1 {
				if err := checkMerge(ctx, a.merger, name, inputs); err != nil {
					return nil, err
				}
			}
		}
	}

	finalDir := a.layout.EntryDir(a.product, plan.Name())
	stage, err := newStage(finalDir)
	if err != nil {
		return nil, errors.FileSystemError("failed to create entry staging directory").
			WithCause(err).
			WithContext("path", finalDir).
			Build()
	}
	defer stage.discard()

	libDir := filepath.Join(stage.dir, "lib", string(plan.Config))
	staged := make(map[string][]string)
	var artifacts []manifest.Artifact

	for _, name := range names {
		file := plan.LibFile(name)
		if universal {
			dst := filepath.Join(libDir, file)
			if err := a.mergeOrCopy(ctx, name, dst, inputsFor(results, name), stage); err != nil {
				return nil, err
			}
			art, err := artifactFor(stage.dir, name, "", dst)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, art)
			staged[name] = []string{dst}
			continue
		}
		for _, r := range results {
			src, ok := r.Artifacts.Libraries[name]
			if !ok {
				continue
			}
			dst := filepath.Join(libDir, string(r.Arch), file)
			if err := stage.install(src, dst); err != nil {
				return nil, errors.FileSystemError("failed to install library").
					WithCause(err).
					WithContext("library", name).
					Build()
			}
			art, err := artifactFor(stage.dir, name, string(r.Arch), dst)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, art)
			staged[name] = append(staged[name], dst)
		}
	}

	if err := a.installHeaders(ctx, plan, results, srcDir); err != nil {
		return nil, err
	}

	m := a.buildManifest(plan, results, argsHash, artifacts)
	if err := m.Write(stage.dir); err != nil {
		return nil, errors.FileSystemError("failed to write build manifest").
			WithCause(err).
			WithContext("path", finalDir).
			Build()
	}
	if err := stage.commit(); err != nil {
		return nil, errors.FileSystemError("failed to publish entry").
			WithCause(err).
			WithContext("path", finalDir).
			Build()
	}

	entry := &Entry{Plan: plan, Dir: finalDir, Manifest: m, Files: make(map[string][]string, len(staged))}
	for name, paths := range staged {
		for _, p := range paths {
			entry.Files[name] = append(entry.Files[name], stage.published(p))
		}
	}
	observability.InfoContext(ctx, "Entry assembled", logfields.Path(entry.Dir), logfields.Name(plan.Name()))
	return entry, nil
}

func (a *Assembler) mergeOrCopy(ctx context.Context, name, dst string, inputs []string, stage *entryStage) error {
	if len(inputs) == 1 {
		if err := stage.install(inputs[0], dst); err != nil {
			return errors.FileSystemError("failed to install library").WithCause(err).WithContext("library", name).Build()
		}
		return nil
	}
	observability.DebugContext(ctx, "Merging architectures", logfields.Library(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.FileSystemError("failed to create library directory").WithCause(err).WithContext("library", name).Build()
	}
	return a.merger.Merge(ctx, dst, inputs)
}

func (a *Assembler) buildManifest(plan *resolve.Plan, results []executor.ArchResult, argsHash string, artifacts []manifest.Artifact) *manifest.BuildManifest {
	arches := make([]string, 0, len(plan.Arches))
	for _, arch := range plan.Arches {
		arches = append(arches, string(arch))
	}
	inputs := a.inputs
	inputs.ArgsHash = argsHash

	omitted := make(map[string]string)
	for _, r := range results {
		for _, ex := range r.Artifacts.Missing {
			omitted[ex.Library] = ex.Reason
		}
	}
	var omissions []manifest.Omission
	for lib, reason := range omitted {
		omissions = append(omissions, manifest.Omission{Library: lib, Reason: reason})
	}

	return &manifest.BuildManifest{
		Schema:  manifest.SchemaVersion,
		Product: a.product,
		Entry:   filepath.Base(a.layout.EntryDir(a.product, plan.Name())),
		Target: manifest.Target{
			Platform:         string(plan.Platform),
			Arches:           arches,
			Universal:        plan.Universal,
			Variant:          string(plan.Variant),
			EffectiveVariant: string(plan.EffectiveVariant),
			CRT:              string(plan.CRT),
			Config:           string(plan.Config),
			Unicode:          string(plan.Unicode),
			MinOS:            plan.MinOS,
		},
		Inputs:  inputs,
		Outputs: manifest.Output{Libraries: artifacts, Omitted: omissions},
	}
}

func artifactFor(entryDir, library, arch, path string) (manifest.Artifact, error) {
	sum, size, err := manifest.HashFile(path)
	if err != nil {
		return manifest.Artifact{}, errors.FileSystemError("failed to hash library").WithCause(err).WithContext("path", path).Build()
	}
	rel, err := filepath.Rel(entryDir, path)
	if err != nil {
		return manifest.Artifact{}, errors.InternalError("library outside entry").WithCause(err).Build()
	}
	return manifest.Artifact{Library: library, Arch: arch, Path: filepath.ToSlash(rel), SHA256: sum, Size: size}, nil
}

// libraryNames returns every library any arch produced, sorted.
func libraryNames(results []executor.ArchResult) []string {
	seen := make(map[string]bool)
	for _, r := range results {
		for name := range r.Artifacts.Libraries {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// inputsFor lists the per-arch files of a library in plan arch order.
func inputsFor(results []executor.ArchResult, name string) []string {
	var inputs []string
	for _, r := range results {
		if p, ok := r.Artifacts.Libraries[name]; ok {
			inputs = append(inputs, p)
		}
	}
	return inputs
}
