// Package errors provides the classified error primitives shared by every
// libforge stage.
//
// A ClassifiedError carries a category, a severity, a retry strategy and a
// small context map. Stage packages build them through the fluent
// ErrorBuilder or through the domain constructors (UnsupportedPlatform,
// BuildFailed, ArchitectureMergeConflict, ...), and the CLI adapter turns
// them into exit codes and user-facing messages.
//
// Example usage:
//
//	err := errors.BuildFailed("arm64", "ninja exited with status 1").
//		WithContext("platform", "linux").
//		WithCause(runErr).
//		Build()
package errors
