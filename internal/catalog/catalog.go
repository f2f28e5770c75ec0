// Package catalog holds the static library table: which libraries a
// (family, variant) build is expected to produce, which of them a given
// platform omits, and which header subtrees are packaged.
package catalog

import (
	"sort"

	"git.home.luguber.info/inful/libforge/internal/platform"
)

// Library is one static archive the primary backend produces.
type Library struct {
	// Name is the library identifier and file stem (skia -> libskia.a).
	Name string
	// Target is the ninja target that builds it.
	Target string
}

// Exclusion records why a platform omits a library.
type Exclusion struct {
	Library string
	Reason  string
}

// HeaderRule copies files matching Pattern from Source (relative to the
// source tree) into Dest (relative to the shared include directory).
type HeaderRule struct {
	Source  string
	Dest    string
	Pattern string
}

type familyKey struct {
	family  platform.Family
	variant platform.Variant
}

type exclusionKey struct {
	platform platform.Platform
	variant  platform.Variant
}

// Catalog is immutable once constructed.
type Catalog struct {
	libraries  map[familyKey][]Library
	unicode    map[platform.Unicode]Library
	exclusions map[exclusionKey][]Exclusion
	headers    map[platform.Variant][]HeaderRule
}

var coreLibraries = []Library{
	{Name: "skia", Target: "skia"},
	{Name: "skottie", Target: "skottie"},
	{Name: "sksg", Target: "sksg"},
	{Name: "skshaper", Target: "skshaper"},
	{Name: "skparagraph", Target: "skparagraph"},
	{Name: "skunicode_core", Target: "skunicode_core"},
	{Name: "svg", Target: "svg"},
	{Name: "skresources", Target: "skresources"},
	{Name: "jsonreader", Target: "jsonreader"},
}

var dawnLibraries = []Library{
	{Name: "dawn_native_static", Target: "third_party/dawn:dawn_native_static"},
	{Name: "dawn_platform_static", Target: "third_party/dawn:dawn_platform_static"},
	{Name: "dawn_proc_static", Target: "third_party/dawn:dawn_proc_static"},
	{Name: "dawn_glfw_static", Target: "third_party/dawn:dawn_glfw_static"},
}

const noGLFW = "no desktop windowing on this platform"

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{
		libraries: make(map[familyKey][]Library),
		unicode: map[platform.Unicode]Library{
			platform.UnicodeICU:         {Name: "skunicode_icu", Target: "skunicode_icu"},
			platform.UnicodeLibgrapheme: {Name: "skunicode_libgrapheme", Target: "skunicode_libgrapheme"},
		},
		exclusions: make(map[exclusionKey][]Exclusion),
		headers:    make(map[platform.Variant][]HeaderRule),
	}

	families := []platform.Family{
		platform.FamilyApple, platform.FamilyAndroid, platform.FamilyWindows,
		platform.FamilyLinux, platform.FamilyWasm,
	}
	for _, f := range families {
		c.libraries[familyKey{f, platform.VariantCPU}] = coreLibraries
		if f == platform.FamilyWasm {
			c.libraries[familyKey{f, platform.VariantGPU}] = coreLibraries
			continue
		}
		gpu := make([]Library, 0, len(coreLibraries)+len(dawnLibraries))
		gpu = append(gpu, coreLibraries...)
		gpu = append(gpu, dawnLibraries...)
		c.libraries[familyKey{f, platform.VariantGPU}] = gpu
	}

	for _, p := range []platform.Platform{
		platform.IOS, platform.IOSSimulator, platform.VisionOS, platform.VisionOSSimulator,
		platform.Android, platform.Linux,
	} {
		c.exclusions[exclusionKey{p, platform.VariantGPU}] = []Exclusion{
			{Library: "dawn_glfw_static", Reason: noGLFW},
		}
	}

	cpuHeaders := []HeaderRule{
		{Source: "include", Dest: "skia/include", Pattern: "*.h"},
		{Source: "modules/skottie/include", Dest: "skia/modules/skottie/include", Pattern: "*.h"},
		{Source: "modules/sksg/include", Dest: "skia/modules/sksg/include", Pattern: "*.h"},
		{Source: "modules/skshaper/include", Dest: "skia/modules/skshaper/include", Pattern: "*.h"},
		{Source: "modules/skparagraph/include", Dest: "skia/modules/skparagraph/include", Pattern: "*.h"},
		{Source: "modules/skunicode/include", Dest: "skia/modules/skunicode/include", Pattern: "*.h"},
		{Source: "modules/svg/include", Dest: "skia/modules/svg/include", Pattern: "*.h"},
		{Source: "modules/skresources/include", Dest: "skia/modules/skresources/include", Pattern: "*.h"},
		{Source: "modules/jsonreader", Dest: "skia/modules/jsonreader", Pattern: "*.h"},
		{Source: "src/core", Dest: "skia/src/core", Pattern: "*.h"},
	}
	c.headers[platform.VariantCPU] = cpuHeaders
	gpuHeaders := append(append([]HeaderRule(nil), cpuHeaders...),
		HeaderRule{Source: "third_party/externals/dawn/include", Dest: "dawn/include", Pattern: "*.h"},
		HeaderRule{Source: "out/gen/third_party/externals/dawn/include", Dest: "dawn/include", Pattern: "*.h"},
	)
	c.headers[platform.VariantGPU] = gpuHeaders

	return c
}

// New builds a catalog from explicit tables. Tests and embedders use it to
// describe trees other than the default.
func New(libs map[platform.Family]map[platform.Variant][]Library, exclusions map[platform.Platform]map[platform.Variant][]Exclusion, headers map[platform.Variant][]HeaderRule) *Catalog {
	c := &Catalog{
		libraries:  make(map[familyKey][]Library),
		unicode:    map[platform.Unicode]Library{},
		exclusions: make(map[exclusionKey][]Exclusion),
		headers:    make(map[platform.Variant][]HeaderRule),
	}
	for f, byVariant := range libs {
		for v, list := range byVariant {
			c.libraries[familyKey{f, v}] = append([]Library(nil), list...)
		}
	}
	for p, byVariant := range exclusions {
		for v, list := range byVariant {
			c.exclusions[exclusionKey{p, v}] = append([]Exclusion(nil), list...)
		}
	}
	for v, rules := range headers {
		c.headers[v] = append([]HeaderRule(nil), rules...)
	}
	return c
}

// Libraries returns the expected manifest for a family and variant. The
// unicode backend library is appended when the catalog knows one.
func (c *Catalog) Libraries(family platform.Family, variant platform.Variant, unicode platform.Unicode) []Library {
	base := c.libraries[familyKey{family, variant}]
	out := make([]Library, 0, len(base)+1)
	out = append(out, base...)
	if lib, ok := c.unicode[unicode]; ok {
		out = append(out, lib)
	}
	return out
}

// Exclusions returns the libraries platform p omits for variant v, sorted by name.
func (c *Catalog) Exclusions(p platform.Platform, v platform.Variant) []Exclusion {
	out := append([]Exclusion(nil), c.exclusions[exclusionKey{p, v}]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Library < out[j].Library })
	return out
}

// Headers returns the header packaging rules for a variant.
func (c *Catalog) Headers(v platform.Variant) []HeaderRule {
	return append([]HeaderRule(nil), c.headers[v]...)
}
