// Package git synchronizes the primary source tree and its DEPS
// sub-dependencies to pinned revisions using go-git.
//
// A sync is idempotent: when HEAD already matches the pinned commit and no
// tracked file is modified the repository is left untouched. Otherwise the
// remote is fetched and the worktree hard-reset to the pinned commit.
// Transient failures are retried with the configured retry.Policy.
package git
