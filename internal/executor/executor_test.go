package executor

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/libforge/internal/backend"
	"git.home.luguber.info/inful/libforge/internal/catalog"
	ferrors "git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
	"git.home.luguber.info/inful/libforge/internal/synth"
	"git.home.luguber.info/inful/libforge/internal/workspace"
)

const llvm = "/usr/lib/llvm-18"

func testCatalog() *catalog.Catalog {
	libs := []catalog.Library{
		{Name: "skia", Target: "skia"},
		{Name: "dawn_native_static", Target: "third_party/dawn:dawn_native_static"},
		{Name: "dawn_glfw_static", Target: "third_party/dawn:dawn_glfw_static"},
	}
	return catalog.New(
		map[platform.Family]map[platform.Variant][]catalog.Library{
			platform.FamilyLinux: {platform.VariantGPU: libs, platform.VariantCPU: libs[:1]},
		},
		map[platform.Platform]map[platform.Variant][]catalog.Exclusion{
			platform.Linux: {platform.VariantGPU: {{Library: "dawn_glfw_static", Reason: "no glfw"}}},
		},
		nil,
	)
}

func resolvePlan(t *testing.T, req resolve.Request, paths ...string) (*resolve.Plan, *synth.Result) {
	t.Helper()
	existing := map[string]bool{}
	for _, p := range paths {
		existing[p] = true
	}
	env := resolve.Env{
		Getenv:   func(string) string { return "" },
		Exists:   func(p string) bool { return existing[p] },
		HostOS:   "linux",
		HostArch: "amd64",
	}
	plan, err := resolve.NewResolver(testCatalog(), env).Resolve(req)
	require.NoError(t, err)
	cfg, err := synth.NewSynthesizer(nil).Synthesize(plan)
	require.NoError(t, err)
	return plan, cfg
}

// fakeBackend writes the named libraries into <work>/out and records calls.
type fakeBackend struct {
	name     string
	platform platform.Platform
	libs     []string
	produced []string
	fail     map[platform.Arch]bool

	mu    sync.Mutex
	calls []platform.Arch
	dirs  []string
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Supports(p platform.Platform) bool {
	return f.platform == "" || f.platform == p
}

func (f *fakeBackend) Build(_ context.Context, inv backend.Invocation) (*backend.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv.Arch)
	f.dirs = append(f.dirs, inv.WorkDir)
	f.mu.Unlock()

	if f.fail[inv.Arch] {
		return nil, ferrors.BuildFailed(string(inv.Arch), "ninja exited with 1").Build()
	}
	out := filepath.Join(inv.WorkDir, "out-"+f.name)
	if err := os.MkdirAll(out, 0o750); err != nil {
		return nil, err
	}
	for _, lib := range append(append([]string(nil), f.libs...), f.produced...) {
		if err := os.WriteFile(filepath.Join(out, inv.Plan.LibFile(lib)), []byte(lib+string(inv.Arch)), 0o600); err != nil {
			return nil, err
		}
	}
	return &backend.Output{SearchDirs: []string{out}, Produced: f.produced}, nil
}

func (f *fakeBackend) called() []platform.Arch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]platform.Arch(nil), f.calls...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestExecuteRecordsArtifactsAndOmissions(t *testing.T) {
	plan, cfg := resolvePlan(t, resolve.Request{Platform: platform.Linux, Variant: platform.VariantGPU}, llvm)
	fb := &fakeBackend{name: "gn", libs: []string{"skia", "dawn_native_static"}}
	layout := workspace.NewLayout(t.TempDir(), "")

	results := New(fb, layout).Execute(context.Background(), plan, cfg, t.TempDir())

	require.Len(t, results, 1)
	r := results[0]
	require.NoError(t, r.Err)
	require.NotNil(t, r.Artifacts)
	assert.Equal(t, plan.Key(), r.Artifacts.PlanKey)
	assert.Len(t, r.Artifacts.Libraries, 2)
	assert.FileExists(t, r.Artifacts.Libraries["skia"])
	require.Len(t, r.Artifacts.Missing, 1)
	assert.Equal(t, "dawn_glfw_static", r.Artifacts.Missing[0].Library)
	assert.Equal(t, "no glfw", r.Artifacts.Missing[0].Reason)
	assert.FileExists(t, filepath.Join(r.WorkDir, LogFileName))
}

func TestExecuteMissingRequiredLibrary(t *testing.T) {
	plan, cfg := resolvePlan(t, resolve.Request{Platform: platform.Linux, Variant: platform.VariantGPU}, llvm)
	fb := &fakeBackend{name: "gn", libs: []string{"skia"}}

	results := New(fb, workspace.NewLayout(t.TempDir(), "")).Execute(context.Background(), plan, cfg, t.TempDir())

	require.Len(t, results, 1)
	err := results[0].Err
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ferrors.ErrManifestMismatch))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	lib, ok := ce.Context().GetString("library")
	require.True(t, ok)
	assert.Equal(t, "dawn_native_static", lib)
	assert.Nil(t, results[0].Artifacts)
}

func TestExecuteFailingArchDoesNotAffectSiblings(t *testing.T) {
	plan, cfg := resolvePlan(t,
		resolve.Request{Platform: platform.Linux, Archs: []platform.Arch{platform.X64, platform.Arm64}},
		llvm, "/usr/aarch64-linux-gnu")
	fb := &fakeBackend{name: "gn", libs: []string{"skia"}, fail: map[platform.Arch]bool{platform.Arm64: true}}

	results := New(fb, workspace.NewLayout(t.TempDir(), ""), WithJobs(2)).
		Execute(context.Background(), plan, cfg, t.TempDir())

	require.Len(t, results, 2)
	assert.Equal(t, platform.X64, results[0].Arch)
	require.NoError(t, results[0].Err)
	assert.Contains(t, results[0].Artifacts.Libraries, "skia")

	assert.Equal(t, platform.Arm64, results[1].Arch)
	assert.True(t, stderrors.Is(results[1].Err, ferrors.ErrBuildFailed))

	assert.NotEqual(t, results[0].WorkDir, results[1].WorkDir)
	assert.Equal(t, []platform.Arch{platform.Arm64, platform.X64}, fb.called())
}

func TestExecuteMissingToolchainSkipsBackend(t *testing.T) {
	plan, cfg := resolvePlan(t,
		resolve.Request{Platform: platform.Linux, Archs: []platform.Arch{platform.X64, platform.Arm64}},
		llvm)
	fb := &fakeBackend{name: "gn", libs: []string{"skia"}}

	results := New(fb, workspace.NewLayout(t.TempDir(), "")).Execute(context.Background(), plan, cfg, t.TempDir())

	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.True(t, stderrors.Is(results[1].Err, ferrors.ErrBuildFailed))
	assert.True(t, stderrors.Is(results[1].Err, ferrors.ErrMissingToolchain))
	assert.Equal(t, []platform.Arch{platform.X64}, fb.called())
}

func TestExecuteSecondaryBackends(t *testing.T) {
	plan, cfg := resolvePlan(t, resolve.Request{Platform: platform.Linux}, llvm)
	primary := &fakeBackend{name: "gn", libs: []string{"skia"}}
	crate := &fakeBackend{name: "crate", platform: platform.Linux, produced: []string{"textlayout"}}
	other := &fakeBackend{name: "other", platform: platform.Mac, produced: []string{"never"}}

	results := New(primary, workspace.NewLayout(t.TempDir(), ""), WithSecondary(crate, other)).
		Execute(context.Background(), plan, cfg, t.TempDir())

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Contains(t, results[0].Artifacts.Libraries, "textlayout")
	assert.Empty(t, other.called())
}

func TestExecuteSeparatesPlans(t *testing.T) {
	cpu, _ := resolvePlan(t, resolve.Request{Platform: platform.Linux}, llvm)
	gpu, _ := resolvePlan(t, resolve.Request{Platform: platform.Linux, Variant: platform.VariantGPU}, llvm)
	e := New(&fakeBackend{name: "gn"}, workspace.NewLayout(t.TempDir(), ""))

	assert.NotEqual(t, e.workDir(cpu, platform.X64), e.workDir(gpu, platform.X64))
}

func TestLocateFallsBackToWalk(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "out", "obj", "third_party")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "libfoo.a"), []byte("x"), 0o600))

	path, ok := locate("libfoo.a", []string{filepath.Join(root, "out")}, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(nested, "libfoo.a"), path)

	_, ok = locate("libbar.a", nil, root)
	assert.False(t, ok)
}
