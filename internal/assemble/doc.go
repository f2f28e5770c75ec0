// Package assemble turns the per-arch artifact sets of a plan into a
// distribution entry, and composes finalized entries into bundles.
//
// Only this package writes under the output directory. Every file is
// written to a temporary name in its destination directory and renamed
// into place, so an interrupted or failed run never leaves a partial file.
package assemble
