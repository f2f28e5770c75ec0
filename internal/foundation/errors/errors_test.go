package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorDefaults(t *testing.T) {
	tests := []struct {
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
		retry    RetryStrategy
	}{
		{ConfigError("x"), CategoryConfig, SeverityFatal, RetryNever},
		{ValidationError("x"), CategoryValidation, SeverityFatal, RetryNever},
		{UnsupportedPlatform("amiga"), CategoryResolve, SeverityFatal, RetryNever},
		{UnsupportedArchitecture("ios", "x86_64"), CategoryResolve, SeverityFatal, RetryNever},
		{MissingToolchain("ndk", "arm64"), CategoryToolchain, SeverityError, RetryUserAction},
		{SyncFailed("x"), CategorySync, SeverityError, RetryBackoff},
		{PatchFailed("0001.patch"), CategoryPatch, SeverityWarning, RetryNever},
		{BuildFailed("x64", "x"), CategoryBuild, SeverityError, RetryNever},
		{ManifestMismatch("libskia.a"), CategoryManifest, SeverityError, RetryNever},
		{ArchitectureMergeConflict("libskia.a"), CategoryMerge, SeverityError, RetryNever},
		{BundleError("x"), CategoryBundle, SeverityError, RetryNever},
		{LedgerError("x"), CategoryLedger, SeverityWarning, RetryNever},
		{FileSystemError("x"), CategoryFileSystem, SeverityError, RetryBackoff},
		{RuntimeError("x"), CategoryRuntime, SeverityFatal, RetryNever},
		{InternalError("x"), CategoryInternal, SeverityFatal, RetryNever},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := tt.builder.Build()
			assert.Equal(t, tt.category, err.Category())
			assert.Equal(t, tt.severity, err.Severity())
			assert.Equal(t, tt.retry, err.RetryStrategy())
		})
	}
}

func TestBuilderOverrides(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(cause, CategorySync, "fetch failed").
		Warning().
		Immediate().
		WithContext("remote", "https://skia.googlesource.com/skia.git").
		WithContextMap(ErrorContext{"attempt": 2}).
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.True(t, err.CanRetry())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[sync] fetch failed: connection reset", err.Error())
	attempt, ok := err.Context().Get("attempt")
	require.True(t, ok)
	assert.Equal(t, 2, attempt)

	moved := SyncFailed("clone failed").WithCategory(CategoryConfig).Build()
	assert.Equal(t, CategoryConfig, moved.Category())
	assert.Equal(t, RetryBackoff, moved.RetryStrategy())
}

func TestBuildSnapshotsContext(t *testing.T) {
	b := BuildFailed("arm64", "ninja exited 1")
	first := b.Build()
	b.WithContext("plan", "ios-gpu")

	_, ok := first.Context().Get("plan")
	assert.False(t, ok)
	plan, _ := b.Build().Context().GetString("plan")
	assert.Equal(t, "ios-gpu", plan)
}

func TestWithContextCopies(t *testing.T) {
	base := BuildFailed("arm64", "ninja exited 1").Build()
	extended := base.WithContext("plan", "ios-gpu")

	_, ok := base.Context().Get("plan")
	assert.False(t, ok)
	plan, _ := extended.Context().GetString("plan")
	assert.Equal(t, "ios-gpu", plan)
	arch, _ := extended.Context().GetString("arch")
	assert.Equal(t, "arm64", arch)
}

func TestSentinelsMatchCategory(t *testing.T) {
	wrapped := fmt.Errorf("plan mac-cpu: %w", ManifestMismatch("libskia.a").Build())

	assert.ErrorIs(t, wrapped, ErrManifestMismatch)
	assert.NotErrorIs(t, wrapped, ErrBuildFailed)
	assert.True(t, HasCategory(wrapped, CategoryManifest))
	assert.Equal(t, CategoryManifest, GetCategory(wrapped))

	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	assert.Equal(t, RetryNever, GetRetryStrategy(errors.New("plain")))
	assert.False(t, IsClassified(errors.New("plain")))
}

func TestMissingToolchainHostWide(t *testing.T) {
	err := MissingToolchain("xcode", "").Build()
	_, ok := err.Context().Get("arch")
	assert.False(t, ok)
	assert.False(t, err.CanRetry())
	assert.False(t, err.IsFatal())
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{}.Set("platform", "mac").Set("arch", "x64")
	b := ErrorContext{}.Set("arch", "arm64").Set("library", "libskia.a")

	merged := a.Merge(b)
	assert.Equal(t, ErrorContext{"platform": "mac", "arch": "arm64", "library": "libskia.a"}, merged)
	assert.Equal(t, "x64", a["arch"])

	var empty ErrorContext
	assert.Equal(t, b, empty.Merge(b))
	_, ok := empty.GetString("arch")
	assert.False(t, ok)
}
