package errors

import "maps"

// ErrorBuilder assembles a ClassifiedError. Severity and retry strategy
// start from the category's defaults and can be overridden.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error in category with the given message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	severity, retry := defaultsFor(category)
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: severity,
		retry:    retry,
		message:  message,
	}}
}

// WrapError is NewError with cause already set.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(cause)
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

// WithCategory moves the error to another category, keeping severity and
// retry strategy as they are.
func (b *ErrorBuilder) WithCategory(category ErrorCategory) *ErrorBuilder {
	b.err.category = category
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// WithContextMap copies every entry of ctx into the error's context.
func (b *ErrorBuilder) WithContextMap(ctx ErrorContext) *ErrorBuilder {
	if len(ctx) == 0 {
		return b
	}
	if b.err.context == nil {
		b.err.context = make(ErrorContext, len(ctx))
	}
	maps.Copy(b.err.context, ctx)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder      { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder    { return b.WithSeverity(SeverityWarning) }
func (b *ErrorBuilder) Info() *ErrorBuilder       { return b.WithSeverity(SeverityInfo) }
func (b *ErrorBuilder) Retryable() *ErrorBuilder  { return b.WithRetry(RetryBackoff) }
func (b *ErrorBuilder) Immediate() *ErrorBuilder  { return b.WithRetry(RetryImmediate) }
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build returns the error. The builder may be reused; later changes do not
// affect errors already built.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	out.context = maps.Clone(b.err.context)
	return &out
}

func ConfigError(message string) *ErrorBuilder     { return NewError(CategoryConfig, message) }
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }

// UnsupportedPlatform reports a platform identifier outside the known set.
func UnsupportedPlatform(id string) *ErrorBuilder {
	return NewError(CategoryResolve, "unsupported platform: "+id).
		WithContext("platform", id)
}

// UnsupportedArchitecture reports an architecture the platform cannot target.
func UnsupportedArchitecture(platform, arch string) *ErrorBuilder {
	return NewError(CategoryResolve, "unsupported architecture "+arch+" for platform "+platform).
		WithContext("platform", platform).
		WithContext("arch", arch)
}

// MissingToolchain reports a toolchain that could not be located. arch is
// empty for host-wide toolchains such as Xcode.
func MissingToolchain(kind, arch string) *ErrorBuilder {
	b := NewError(CategoryToolchain, "missing toolchain: "+kind).WithContext("toolchain", kind)
	if arch != "" {
		b.WithContext("arch", arch)
	}
	return b
}

func SyncFailed(message string) *ErrorBuilder { return NewError(CategorySync, message) }

// PatchFailed reports a patch that neither applied nor was already present.
func PatchFailed(name string) *ErrorBuilder {
	return NewError(CategoryPatch, "patch failed: "+name).WithContext("patch", name)
}

// BuildFailed reports a failed build step for one architecture.
func BuildFailed(arch, reason string) *ErrorBuilder {
	return NewError(CategoryBuild, "build failed for "+arch+": "+reason).WithContext("arch", arch)
}

// ManifestMismatch reports a required library missing from build output.
func ManifestMismatch(library string) *ErrorBuilder {
	return NewError(CategoryManifest, "required library not produced: "+library).
		WithContext("library", library)
}

// ArchitectureMergeConflict reports inputs to a universal merge that share
// an architecture slice.
func ArchitectureMergeConflict(library string) *ErrorBuilder {
	return NewError(CategoryMerge, "architecture merge conflict for "+library).
		WithContext("library", library)
}

func BundleError(message string) *ErrorBuilder { return NewError(CategoryBundle, message) }

// LedgerError reports a run ledger failure. These never fail a build.
func LedgerError(message string) *ErrorBuilder { return NewError(CategoryLedger, message) }

func FileSystemError(message string) *ErrorBuilder { return NewError(CategoryFileSystem, message) }
func RuntimeError(message string) *ErrorBuilder    { return NewError(CategoryRuntime, message) }
func InternalError(message string) *ErrorBuilder   { return NewError(CategoryInternal, message) }
