package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	raw := `version: "1"
source:
  url: https://skia.googlesource.com/skia.git
  revision: abc123
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "skia", cfg.Product)
	assert.Equal(t, "skia", cfg.Source.Name)
	assert.Equal(t, "DEPS", cfg.Source.DepsFile)
	assert.Equal(t, "patches", cfg.Patches.Directory)
	assert.Equal(t, 1, cfg.Patches.Strip)
	assert.Equal(t, "build", cfg.Build.Root)
	assert.Equal(t, filepath.Join("build", "dist"), cfg.Build.Output)
	assert.Positive(t, cfg.Build.Jobs)
	assert.Equal(t, "icu", cfg.Build.Unicode)
	assert.Equal(t, "cmake", cfg.Build.CMake)
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
	require.NotNil(t, cfg.Retry.MaxRetries)
	assert.Equal(t, 2, *cfg.Retry.MaxRetries)
	assert.Equal(t, filepath.Join("build", "libforge.db"), cfg.StateDB)
}

func TestParseExplicitZeroRetriesPreserved(t *testing.T) {
	raw := `source:
  url: https://example.com/skia.git
  branch: main
retry:
  max_retries: 0
  backoff: FIXED
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 0, *cfg.Retry.MaxRetries)
	assert.Equal(t, RetryBackoffFixed, cfg.Retry.Backoff)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("LIBFORGE_TEST_REV", "deadbeef")
	raw := `source:
  url: https://example.com/skia.git
  revision: ${LIBFORGE_TEST_REV}
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", cfg.Source.Revision)
}

func TestParsePatchTargetsInheritStrip(t *testing.T) {
	raw := `source:
  url: https://example.com/skia.git
  revision: r1
patches:
  strip: 2
  targets:
    - prefix: dawn-
      path: third_party/externals/dawn
    - prefix: icu-
      path: third_party/externals/icu
      strip: 1
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, cfg.Patches.Targets, 2)
	assert.Equal(t, 2, cfg.Patches.Targets[0].Strip)
	assert.Equal(t, 1, cfg.Patches.Targets[1].Strip)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing revision", "source:\n  url: https://x/y.git\n", "source.revision"},
		{"bad unicode", "build:\n  unicode: harfbuzz\n", "build.unicode"},
		{"bad gn arg type", "build:\n  gn_args:\n    skia_foo: 1.5\n", "build.gn_args"},
		{"bad min os platform", "build:\n  min_os:\n    amiga: \"1\"\n", "build.min_os"},
		{"bad retry delay", "retry:\n  initial_delay: soon\n", "retry.initial_delay"},
		{"negative retries", "retry:\n  max_retries: -1\n", "retry.max_retries"},
		{"duplicate patch prefix", "patches:\n  targets:\n    - {prefix: a, path: x}\n    - {prefix: a, path: y}\n", "patches.targets"},
		{"bundle non apple", "bundles:\n  - {name: b, kind: xcframework, platforms: [linux]}\n", "bundles.platforms"},
		{"bundle bad kind", "bundles:\n  - {name: b, kind: zip, platforms: [ios]}\n", "bundles.kind"},
		{"secondary missing crate", "secondary:\n  - {name: swc, library: swc}\n", "secondary"},
		{"cmake missing libraries", "cmake:\n  - {name: webp, source_dir: third_party/libwebp}\n", "cmake"},
		{"cmake bad option", "cmake:\n  - {name: webp, source_dir: w, libraries: [webp], options: [WEBP_BUILD_CWEBP=OFF]}\n", "cmake.options"},
		{"cmake bad platform", "cmake:\n  - {name: webp, source_dir: w, libraries: [webp], platforms: [amiga]}\n", "cmake.platforms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			classified, ok := errors.AsClassified(err)
			require.True(t, ok)
			assert.Equal(t, errors.CategoryConfig, classified.Category())
			field, _ := classified.Context().GetString("field")
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	_, err := Parse([]byte("version: \"9\"\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libforge.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "skia", cfg.Product)
	assert.Equal(t, "chrome/m126", cfg.Source.Revision)
	require.Len(t, cfg.Secondary, 1)
	assert.Equal(t, "swc_static", cfg.Secondary[0].CrateLibrary)
	require.Len(t, cfg.CMake, 1)
	assert.Equal(t, []string{"src/webp", "sharpyuv"}, cfg.CMake[0].HeaderDirs)
	require.Len(t, cfg.Bundles, 1)
	assert.Equal(t, BundleXCFramework, cfg.Bundles[0].Kind)

	err = Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Empty(t, cfg.Source.URL)
	initial, maxDelay := cfg.Retry.RetryDurations()
	assert.Equal(t, "1s", initial.String())
	assert.Equal(t, "30s", maxDelay.String())
}

func TestLoadEnvFilesPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LIBFORGE_ENV_A=file\nLIBFORGE_ENV_B=file\nLIBFORGE_ENV_C=file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("LIBFORGE_ENV_C=local\n"), 0o600))

	t.Setenv("LIBFORGE_ENV_A", "process")
	for _, k := range []string{"LIBFORGE_ENV_B", "LIBFORGE_ENV_C"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	loadEnvFiles(dir)
	assert.Equal(t, "process", os.Getenv("LIBFORGE_ENV_A"))
	assert.Equal(t, "file", os.Getenv("LIBFORGE_ENV_B"))
	assert.Equal(t, "local", os.Getenv("LIBFORGE_ENV_C"))
}
