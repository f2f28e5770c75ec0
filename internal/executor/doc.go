// Package executor runs the backends for every arch of a plan and checks the
// result against the plan's expected library manifest.
//
// Arch tasks are independent: each owns a private scratch directory and a
// failing arch never cancels its siblings. The returned slice is the fan-in
// barrier the assembler waits on.
package executor
