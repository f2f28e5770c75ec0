package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Process exit codes by category. Categories that share a code fail at the
// same point of a run.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryResolve:    2,
	CategoryToolchain:  3,
	CategoryConfig:     7,
	CategorySync:       8,
	CategoryPatch:      8,
	CategoryBuild:      11,
	CategoryManifest:   11,
	CategoryMerge:      11,
	CategoryBundle:     11,
	CategoryFileSystem: 11,
	CategoryInternal:   10,
	CategoryRuntime:    12,
	CategoryLedger:     12,
}

// locationKeys are the context values shown after a non-verbose message.
var locationKeys = []string{"platform", "arch", "library"}

// CLIErrorAdapter turns a failed run into a message and an exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, stderr: os.Stderr, exit: os.Exit}
}

// ExitCode returns the process exit code for a category; 1 if unknown.
func ExitCode(category ErrorCategory) int {
	if code, ok := exitCodes[category]; ok {
		return code
	}
	return 1
}

// ExitCodeFor returns 0 for nil, the category's code for classified errors
// and 1 otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if classified, ok := AsClassified(err); ok {
		return ExitCode(classified.Category())
	}
	return 1
}

// FormatError renders err for stderr. Verbose output includes the category
// and cause chain; otherwise only the message and where it happened.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	switch {
	case !ok:
		return "Error: " + err.Error()
	case a.verbose:
		return "Error: " + classified.Error()
	case classified.Category() == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	}

	msg := "Error: " + classified.Message()
	var where []string
	for _, key := range locationKeys {
		if v, ok := classified.Context().GetString(key); ok && v != "" && !strings.Contains(msg, v) {
			where = append(where, key+" "+v)
		}
	}
	if len(where) > 0 {
		msg += " (" + strings.Join(where, ", ") + ")"
	}
	return msg
}

// HandleError reports err and exits with its code. It returns only for nil.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(a.stderr, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

// shouldLog logs everything when verbose, else only fatal and unclassified
// errors; the stderr line already covers the rest.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.IsFatal()
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", slog.String("error", err.Error()))
		return
	}

	attrs := []slog.Attr{slog.String("category", string(classified.Category()))}
	if classified.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	ctx := classified.Context()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, ctx[k]))
	}
	a.logger.LogAttrs(context.Background(), levelFor(classified.Severity()), classified.Message(), attrs...)
}

func levelFor(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
