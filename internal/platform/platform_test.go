package platform

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
)

func TestParse(t *testing.T) {
	p, err := Parse("MacOS")
	require.NoError(t, err)
	assert.Equal(t, Mac, p)

	p, err = Parse("windows")
	require.NoError(t, err)
	assert.Equal(t, Windows, p)

	_, err = Parse("amiga")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedPlatform))

	_, err = Parse("")
	require.Error(t, err)
}

func TestLookupCoversEveryPlatform(t *testing.T) {
	for _, p := range All() {
		traits, err := Lookup(p)
		require.NoError(t, err, p)
		assert.Equal(t, p, traits.Platform)
		assert.NotEmpty(t, traits.Arches, p)
		assert.NotEmpty(t, traits.DefaultArches, p)
		for _, a := range traits.DefaultArches {
			assert.True(t, traits.SupportsArch(a), "%s default arch %s not supported", p, a)
		}
		assert.NotEmpty(t, traits.GNOS, p)
	}

	_, err := Lookup(Platform("beos"))
	require.Error(t, err)
}

func TestTraits(t *testing.T) {
	mac := MustLookup(Mac)
	assert.True(t, mac.DefaultUniversal)
	assert.Equal(t, "libskia.a", mac.LibFile("skia"))
	assert.Equal(t, "10.15", mac.MinOS)

	win := MustLookup(Windows)
	assert.True(t, win.MultipleCRT)
	assert.Equal(t, "skia.lib", win.LibFile("skia"))

	wasm := MustLookup(Wasm)
	assert.False(t, wasm.GPU)

	ios := MustLookup(IOS)
	assert.False(t, ios.Universal)
	assert.False(t, ios.SupportsArch(X86_64))
}

func TestCounterparts(t *testing.T) {
	sim, ok := IOS.Simulator()
	require.True(t, ok)
	assert.Equal(t, IOSSimulator, sim)

	dev, ok := VisionOSSimulator.Device()
	require.True(t, ok)
	assert.Equal(t, VisionOS, dev)

	_, ok = Linux.Simulator()
	assert.False(t, ok)
}

func TestArch(t *testing.T) {
	assert.Equal(t, Arm64, ParseArch("aarch64"))
	assert.Equal(t, Universal, ParseArch("Universal"))
	assert.Equal(t, Arch("sparc"), ParseArch("sparc"))

	assert.Equal(t, "x64", X86_64.GNCPU())
	assert.Equal(t, "wasm", Wasm32.GNCPU())
	assert.Equal(t, "arm", Arm.GNCPU())
}

func TestOptionParsing(t *testing.T) {
	v, err := ParseVariant("GPU")
	require.NoError(t, err)
	assert.Equal(t, VariantGPU, v)

	c, err := ParseCRT("md")
	require.NoError(t, err)
	assert.Equal(t, CRTDynamic, c)

	b, err := ParseBuildType("")
	require.NoError(t, err)
	assert.Equal(t, Release, b)
	assert.False(t, b.IsDebug())

	_, err = ParseUnicode("harfbuzz")
	require.Error(t, err)

	tg, err := ParseTarget("all")
	require.NoError(t, err)
	assert.Equal(t, TargetAll, tg)
}
