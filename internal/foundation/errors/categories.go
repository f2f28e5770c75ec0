package errors

// ErrorCategory names the stage of a run an error came from. The CLI maps
// categories to exit codes, so two categories that fail at the same point
// may share a code.
type ErrorCategory string

// Input and resolution.
const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryResolve    ErrorCategory = "resolve"
	CategoryToolchain  ErrorCategory = "toolchain"
)

// Source acquisition.
const (
	CategorySync  ErrorCategory = "sync"
	CategoryPatch ErrorCategory = "patch"
)

// Compilation and packaging.
const (
	CategoryBuild      ErrorCategory = "build"
	CategoryManifest   ErrorCategory = "manifest"
	CategoryMerge      ErrorCategory = "merge"
	CategoryBundle     ErrorCategory = "bundle"
	CategoryFileSystem ErrorCategory = "filesystem"
)

// Bookkeeping and everything else.
const (
	CategoryLedger   ErrorCategory = "ledger"
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity says how far an error propagates.
type ErrorSeverity string

const (
	// SeverityFatal aborts the whole run.
	SeverityFatal ErrorSeverity = "fatal"
	// SeverityError fails one plan or arch; siblings continue.
	SeverityError ErrorSeverity = "error"
	// SeverityWarning is reported and the run carries on.
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells callers whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryImmediate  RetryStrategy = "immediate"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

// defaults holds the severity and retry strategy NewError starts from.
var defaults = map[ErrorCategory]struct {
	severity ErrorSeverity
	retry    RetryStrategy
}{
	CategoryConfig:     {SeverityFatal, RetryNever},
	CategoryValidation: {SeverityFatal, RetryNever},
	CategoryResolve:    {SeverityFatal, RetryNever},
	CategoryToolchain:  {SeverityError, RetryUserAction},
	CategorySync:       {SeverityError, RetryBackoff},
	CategoryPatch:      {SeverityWarning, RetryNever},
	CategoryFileSystem: {SeverityError, RetryBackoff},
	CategoryLedger:     {SeverityWarning, RetryNever},
	CategoryRuntime:    {SeverityFatal, RetryNever},
	CategoryInternal:   {SeverityFatal, RetryNever},
}

func defaultsFor(category ErrorCategory) (ErrorSeverity, RetryStrategy) {
	if d, ok := defaults[category]; ok {
		return d.severity, d.retry
	}
	return SeverityError, RetryNever
}
