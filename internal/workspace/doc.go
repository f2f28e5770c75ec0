// Package workspace owns the on-disk layout of a build root.
//
//	<root>/src/<name>                          synchronized sources
//	<root>/tmp/<platform>_<config>_<arch>      per-arch scratch, one writer each
//	<output>/<product>-<plan>/lib/<Config>/    distribution entries
//	<output>/include/                          shared headers
//	<output>/bundles/                          umbrella artifacts
//
// Scratch directories survive interrupted runs; the next run overwrites them.
package workspace
