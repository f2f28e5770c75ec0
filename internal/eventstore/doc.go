// Package eventstore is the local run ledger. A run appends typed events
// (RunStarted, SourceSynced, PatchApplied, ArchBuilt, PlanFinished,
// RunCompleted) to a SQLite database, and Summarize folds them back into
// per-run summaries for the history command.
//
// The ledger is best effort: callers log append failures and carry on.
package eventstore
