package patch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/libforge/internal/execx"
)

// fakeApplier tracks applied patches by name.
type fakeApplier struct {
	applied  map[string]bool
	obsolete map[string]bool
	calls    []string
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{applied: map[string]bool{}, obsolete: map[string]bool{}}
}

func (f *fakeApplier) CheckReverse(_ context.Context, _ string, rec Record) error {
	f.calls = append(f.calls, "reverse:"+rec.Name)
	if f.applied[rec.Name] {
		return nil
	}
	return errors.New("reverse does not apply")
}

func (f *fakeApplier) Check(_ context.Context, _ string, rec Record) error {
	f.calls = append(f.calls, "check:"+rec.Name)
	if f.obsolete[rec.Name] {
		return errors.New("error: patch failed: src/core/SkFoo.cpp:12")
	}
	return nil
}

func (f *fakeApplier) Apply(_ context.Context, _ string, rec Record) error {
	f.calls = append(f.calls, "apply:"+rec.Name)
	f.applied[rec.Name] = true
	return nil
}

func TestEngineIdempotent(t *testing.T) {
	root := t.TempDir()
	fake := newFakeApplier()
	records := []Record{{Name: "0001-a.patch", Strip: 1}, {Name: "0002-b.patch", Strip: 1}}

	first := NewEngine(fake).Apply(context.Background(), root, records)
	assert.Equal(t, 2, first.Count(OutcomeApplied))

	second := NewEngine(fake).Apply(context.Background(), root, records)
	assert.Equal(t, 2, second.Count(OutcomeAlreadyApplied))
	assert.Empty(t, second.Failed())
}

func TestEngineObsoletePatchIsNonFatal(t *testing.T) {
	root := t.TempDir()
	fake := newFakeApplier()
	fake.obsolete["0001-old.patch"] = true
	records := []Record{{Name: "0001-old.patch", Strip: 1}, {Name: "0002-new.patch", Strip: 1}}

	report := NewEngine(fake).Apply(context.Background(), root, records)
	require.Len(t, report.Results, 2)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Detail, "patch failed")
	assert.Equal(t, OutcomeApplied, report.Results[1].Outcome)
	assert.Equal(t, []string{
		"reverse:0001-old.patch", "check:0001-old.patch",
		"reverse:0002-new.patch", "check:0002-new.patch", "apply:0002-new.patch",
	}, fake.calls)
}

func TestEngineVerifyDoesNotApply(t *testing.T) {
	fake := newFakeApplier()
	fake.applied["0001-a.patch"] = true
	records := []Record{{Name: "0001-a.patch", Body: []byte("a")}, {Name: "0002-b.patch", Body: []byte("b")}}

	report := NewEngine(fake).Verify(context.Background(), t.TempDir(), records)

	require.Len(t, report.Results, 2)
	assert.Equal(t, OutcomeAlreadyApplied, report.Results[0].Outcome)
	assert.Equal(t, records[0].Digest(), report.Results[0].SHA256)
	assert.Equal(t, OutcomeFailed, report.Results[1].Outcome)
	assert.Contains(t, report.Results[1].Detail, "not present")
	assert.Equal(t, []string{"reverse:0001-a.patch", "reverse:0002-b.patch"}, fake.calls)
}

func TestDigests(t *testing.T) {
	a := Record{Name: "0001-a.patch", Body: []byte("a"), Strip: 1}
	b := Record{Name: "0002-b.patch", Body: []byte("b"), Strip: 1}

	assert.Equal(t, "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb", a.Digest())
	assert.Empty(t, SetDigest(nil))
	assert.Equal(t, SetDigest([]Record{a, b}), SetDigest([]Record{a, b}))
	assert.NotEqual(t, SetDigest([]Record{a, b}), SetDigest([]Record{b, a}))

	routed := a
	routed.TargetPrefix = "third_party/externals/dawn"
	assert.NotEqual(t, SetDigest([]Record{a}), SetDigest([]Record{routed}))

	assert.True(t, OutcomeApplied.Present())
	assert.True(t, OutcomeAlreadyApplied.Present())
	assert.False(t, OutcomeFailed.Present())
}

func TestEngineMissingTarget(t *testing.T) {
	fake := newFakeApplier()
	report := NewEngine(fake).Apply(context.Background(), t.TempDir(), []Record{{Name: "x.patch", TargetPrefix: "third_party/missing"}})
	require.Len(t, report.Failed(), 1)
	assert.Empty(t, fake.calls)
}

func TestLoadRoutesByPrefix(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"skia-0002-b.patch", "skia-0001-a.patch", "dawn-0001.patch", "dawn-glfw-0001.patch", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}

	records, err := Load(dir, 1, []Target{
		{Prefix: "dawn-", Path: "third_party/externals/dawn", Strip: 2},
		{Prefix: "dawn-glfw-", Path: "third_party/externals/glfw"},
	})
	require.NoError(t, err)

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"dawn-0001.patch", "dawn-glfw-0001.patch", "skia-0001-a.patch", "skia-0002-b.patch"}, names)

	assert.Equal(t, "third_party/externals/dawn", records[0].TargetPrefix)
	assert.Equal(t, 2, records[0].Strip)
	assert.Equal(t, "third_party/externals/glfw", records[1].TargetPrefix)
	assert.Equal(t, 1, records[1].Strip)
	assert.Equal(t, "", records[2].TargetPrefix)
	assert.Equal(t, []byte("skia-0001-a.patch"), records[2].Body)
}

func TestLoadMissingDirectory(t *testing.T) {
	records, err := Load(filepath.Join(t.TempDir(), "none"), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

const helloPatch = `diff --git a/hello.txt b/hello.txt
--- a/hello.txt
+++ b/hello.txt
@@ -1 +1 @@
-hello
+hello patched
`

func TestGitApplierRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := t.TempDir()
	target := filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(target, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(target, "hello.txt"), []byte("hello\n"), 0o600))

	engine := NewEngine(NewGitApplier(execx.NewOSRunner()))
	records := []Record{{Name: "0001-hello.patch", TargetPrefix: "pkg", Body: []byte(helloPatch), Strip: 1}}

	report := engine.Apply(context.Background(), root, records)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeApplied, report.Results[0].Outcome, report.Results[0].Detail)
	data, err := os.ReadFile(filepath.Join(target, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello patched\n", string(data))

	report = engine.Apply(context.Background(), root, records)
	assert.Equal(t, OutcomeAlreadyApplied, report.Results[0].Outcome)

	require.NoError(t, os.WriteFile(filepath.Join(target, "hello.txt"), []byte("goodbye\n"), 0o600))
	report = engine.Apply(context.Background(), root, records)
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.NotEmpty(t, report.Results[0].Detail)
}
