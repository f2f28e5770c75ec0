package synth

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/gnargs"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

func resolvePlan(t *testing.T, req resolve.Request, vars map[string]string, paths ...string) *resolve.Plan {
	t.Helper()
	existing := map[string]bool{}
	for _, p := range paths {
		existing[p] = true
	}
	env := resolve.Env{
		Getenv:   func(k string) string { return vars[k] },
		Exists:   func(p string) bool { return existing[p] },
		HostOS:   "linux",
		HostArch: "amd64",
	}
	plan, err := resolve.NewResolver(nil, env).Resolve(req)
	require.NoError(t, err)
	return plan
}

func render(t *testing.T, cfg *gnargs.Config) string {
	t.Helper()
	require.NotNil(t, cfg)
	return cfg.Render()
}

func TestSynthesizeDeterministic(t *testing.T) {
	plan := resolvePlan(t, resolve.Request{Platform: platform.Mac, Variant: platform.VariantGPU}, nil,
		"/Applications/Xcode.app/Contents/Developer")
	extra := map[string]any{"zeta": true, "alpha": "x", "mid": 3}

	first, err := NewSynthesizer(extra).Synthesize(plan)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := NewSynthesizer(extra).Synthesize(plan)
		require.NoError(t, err)
		for _, arch := range plan.Arches {
			assert.Equal(t, render(t, first.ForArch(arch)), render(t, again.ForArch(arch)))
		}
		assert.Equal(t, first.Hash(), again.Hash())
	}

	keys := first.ForArch(platform.Arm64).Keys()
	tail := keys[len(keys)-3:]
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, tail); diff != "" {
		t.Fatalf("user keys out of order (-want +got):\n%s", diff)
	}
}

func TestLayerOrderAndOverride(t *testing.T) {
	plan := resolvePlan(t, resolve.Request{Platform: platform.Linux}, nil, "/usr")

	res, err := NewSynthesizer(map[string]any{"is_official_build": false}).Synthesize(plan)
	require.NoError(t, err)
	cfg := res.ForArch(platform.X64)

	assert.Equal(t, "is_official_build", cfg.Keys()[0])
	v, ok := cfg.Get("is_official_build")
	require.True(t, ok)
	assert.Equal(t, "false", v.Render())
	assert.Equal(t, LayerUser, cfg.Origin("is_official_build"))
	assert.Equal(t, LayerArch, cfg.Origin("target_cpu"))
	assert.Equal(t, LayerFamily, cfg.Origin("cc"))

	cc, _ := cfg.Get("cc")
	assert.Equal(t, `"/usr/bin/clang"`, cc.Render())
}

func TestGPUDowngradeDisablesGraphics(t *testing.T) {
	plan := resolvePlan(t, resolve.Request{Platform: platform.Wasm, Variant: platform.VariantGPU},
		map[string]string{"EMSDK": "/emsdk"}, "/emsdk")

	res, err := NewSynthesizer(nil).Synthesize(plan)
	require.NoError(t, err)
	cfg := res.ForArch(platform.Wasm32)
	for _, key := range []string{"skia_use_dawn", "skia_enable_graphite", "skia_enable_ganesh"} {
		v, ok := cfg.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, "false", v.Render(), key)
	}
	cpu, _ := cfg.Get("target_cpu")
	assert.Equal(t, `"wasm"`, cpu.Render())
	cc, _ := cfg.Get("cc")
	assert.Equal(t, `"/emsdk/upstream/emscripten/emcc"`, cc.Render())
}

func TestWindowsCRTFlags(t *testing.T) {
	vc := "C:/vc"
	cases := []struct {
		crt    platform.CRT
		config platform.BuildType
		want   string
	}{
		{platform.CRTStatic, platform.Release, `["/MT"]`},
		{platform.CRTStatic, platform.Debug, `["/MTd"]`},
		{platform.CRTDynamic, platform.Release, `["/MD"]`},
		{platform.CRTDynamic, platform.Debug, `["/MDd"]`},
	}
	for _, tc := range cases {
		t.Run(string(tc.crt)+"-"+string(tc.config), func(t *testing.T) {
			plan := resolvePlan(t, resolve.Request{Platform: platform.Windows, CRT: tc.crt, Config: tc.config},
				map[string]string{"VCINSTALLDIR": vc}, vc)
			res, err := NewSynthesizer(nil).Synthesize(plan)
			require.NoError(t, err)
			v, ok := res.ForArch(platform.X64).Get("extra_cflags")
			require.True(t, ok)
			assert.Equal(t, tc.want, v.Render())
			winVC, _ := res.ForArch(platform.X64).Get("win_vc")
			assert.Equal(t, `"C:/vc"`, winVC.Render())
		})
	}
}

func TestLinuxArm64CrossFlags(t *testing.T) {
	plan := resolvePlan(t, resolve.Request{Platform: platform.Linux, Archs: resolve.ParseArchList("x64,arm64")},
		map[string]string{"LINUX_ARM64_SYSROOT": "/sysroot"}, "/usr", "/sysroot")

	res, err := NewSynthesizer(nil).Synthesize(plan)
	require.NoError(t, err)

	x64, _ := res.ForArch(platform.X64).Get("extra_cflags")
	assert.Equal(t, `["-fPIC"]`, x64.Render())

	arm, _ := res.ForArch(platform.Arm64).Get("extra_cflags")
	assert.Equal(t, `["-fPIC", "--sysroot=/sysroot", "--target=aarch64-unknown-linux-gnu"]`, arm.Render())
	_, hasLd := res.ForArch(platform.X64).Get("extra_ldflags")
	assert.False(t, hasLd)
}

func TestForArchSkipsUnresolvedArch(t *testing.T) {
	plan := resolvePlan(t, resolve.Request{Platform: platform.Linux, Archs: resolve.ParseArchList("x64,arm64")}, nil, "/usr")

	res, err := NewSynthesizer(nil).Synthesize(plan)
	require.NoError(t, err)
	assert.NotNil(t, res.ForArch(platform.X64))
	assert.Nil(t, res.ForArch(platform.Arm64))
}

func TestUserArgsRejectUnsupportedValues(t *testing.T) {
	plan := resolvePlan(t, resolve.Request{Platform: platform.Linux}, nil, "/usr")

	_, err := NewSynthesizer(map[string]any{"bad": 1.5}).Synthesize(plan)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryConfig, ferrors.GetCategory(err))

	res, err := NewSynthesizer(map[string]any{"defines": []any{"A=1", "B"}}).Synthesize(plan)
	require.NoError(t, err)
	v, _ := res.ForArch(platform.X64).Get("defines")
	assert.Equal(t, `["A=1", "B"]`, v.Render())
}

func TestUnicodeToggle(t *testing.T) {
	plan := resolvePlan(t, resolve.Request{Platform: platform.Linux, Unicode: platform.UnicodeLibgrapheme}, nil, "/usr")

	res, err := NewSynthesizer(nil).Synthesize(plan)
	require.NoError(t, err)
	icu, _ := res.ForArch(platform.X64).Get("skia_use_icu")
	grapheme, _ := res.ForArch(platform.X64).Get("skia_use_libgrapheme")
	assert.Equal(t, "false", icu.Render())
	assert.Equal(t, "true", grapheme.Render())
}
