package errors

import (
	stderrors "errors"
	"maps"
)

// ClassifiedError is an error tagged with the stage it came from, how far it
// propagates and whether retrying can help.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// Error renders "[category] message" followed by the cause, if any.
func (e *ClassifiedError) Error() string {
	s := "[" + string(e.category) + "] " + e.message
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *ClassifiedError) Unwrap() error                { return e.cause }
func (e *ClassifiedError) Cause() error                 { return e.cause }
func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }

// Message is the bare message, without category or cause.
func (e *ClassifiedError) Message() string { return e.message }

// Context must not be modified by callers; use WithContext instead.
func (e *ClassifiedError) Context() ErrorContext { return e.context }

// WithContext returns a copy of e carrying one more context value.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	next := *e
	next.context = maps.Clone(e.context).Set(key, value)
	return &next
}

// Is matches a ClassifiedError of the same category. Targets with an empty
// message, like the sentinels below, match the whole category.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	if !ok || other.category != e.category {
		return false
	}
	return other.message == "" || other.message == e.message
}

func (e *ClassifiedError) IsCategory(category ErrorCategory) bool { return e.category == category }
func (e *ClassifiedError) IsFatal() bool                          { return e.severity == SeverityFatal }

// CanRetry is true for immediate and backoff strategies.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry == RetryImmediate || e.retry == RetryBackoff
}

// Category sentinels for errors.Is.
var (
	ErrUnsupportedPlatform       = &ClassifiedError{category: CategoryResolve}
	ErrMissingToolchain          = &ClassifiedError{category: CategoryToolchain}
	ErrSyncFailed                = &ClassifiedError{category: CategorySync}
	ErrPatchFailed               = &ClassifiedError{category: CategoryPatch}
	ErrBuildFailed               = &ClassifiedError{category: CategoryBuild}
	ErrManifestMismatch          = &ClassifiedError{category: CategoryManifest}
	ErrArchitectureMergeConflict = &ClassifiedError{category: CategoryMerge}
	ErrLedger                    = &ClassifiedError{category: CategoryLedger}
)

// AsClassified returns the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	ok := stderrors.As(err, &classified)
	return classified, ok
}

func IsClassified(err error) bool {
	_, ok := AsClassified(err)
	return ok
}

// HasCategory reports whether the first classified error in the chain is in
// category.
func HasCategory(err error, category ErrorCategory) bool {
	c, ok := AsClassified(err)
	return ok && c.category == category
}

// HasSeverity reports whether the first classified error in the chain has
// severity.
func HasSeverity(err error, severity ErrorSeverity) bool {
	c, ok := AsClassified(err)
	return ok && c.severity == severity
}

// GetCategory returns err's category; unclassified errors count as internal.
func GetCategory(err error) ErrorCategory {
	if c, ok := AsClassified(err); ok {
		return c.category
	}
	return CategoryInternal
}

// GetRetryStrategy returns err's retry strategy, or RetryNever.
func GetRetryStrategy(err error) RetryStrategy {
	if c, ok := AsClassified(err); ok {
		return c.retry
	}
	return RetryNever
}
