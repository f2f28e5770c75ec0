// Package logfields defines the canonical slog attribute keys.
package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPlan       = "plan"
	KeyPlatform   = "platform"
	KeyArch       = "arch"
	KeyVariant    = "variant"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyLibrary    = "library"
	KeyPatch      = "patch"
	KeyOutcome    = "outcome"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyDep        = "dep"
	KeyRevision   = "revision"
	KeyAttempt    = "attempt"
	KeyName       = "name"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Plan(name string) slog.Attr      { return slog.String(KeyPlan, name) }
func Platform(p string) slog.Attr     { return slog.String(KeyPlatform, p) }
func Arch(a string) slog.Attr         { return slog.String(KeyArch, a) }
func Variant(v string) slog.Attr      { return slog.String(KeyVariant, v) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Library(name string) slog.Attr   { return slog.String(KeyLibrary, name) }
func Patch(name string) slog.Attr     { return slog.String(KeyPatch, name) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Dep(path string) slog.Attr       { return slog.String(KeyDep, path) }
func Revision(rev string) slog.Attr   { return slog.String(KeyRevision, rev) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
