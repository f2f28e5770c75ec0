package resolve

import (
	"git.home.luguber.info/inful/libforge/internal/catalog"
	"git.home.luguber.info/inful/libforge/internal/platform"
)

// Plan is the fully resolved description of one (platform, variant, crt,
// config) build. It must not be modified after Resolve returns.
type Plan struct {
	Platform platform.Platform
	Traits   platform.Traits

	// Arches is non-empty and ordered; for universal plans it is the merge order.
	Arches    []platform.Arch
	Universal bool

	// Variant is what the user asked for. EffectiveVariant is what the
	// platform can build.
	Variant          platform.Variant
	EffectiveVariant platform.Variant

	CRT     platform.CRT
	Config  platform.BuildType
	Unicode platform.Unicode
	MinOS   string

	Toolchains map[platform.Arch]Toolchain
	SDKRoot    string
	Triples    map[platform.Arch]string

	// Libraries is the expected manifest; Excluded lists libraries the
	// platform is known not to produce.
	Libraries []catalog.Library
	Excluded  []catalog.Exclusion

	// ArchErrors holds per-arch resolution failures. Those arches fail at
	// execution without invoking a backend.
	ArchErrors map[platform.Arch]error
}

// Name is the distribution directory suffix: <platform>-<variant>[-md].
func (p *Plan) Name() string {
	name := string(p.Platform) + "-" + string(p.EffectiveVariant)
	if p.CRT == platform.CRTDynamic {
		name += "-md"
	}
	return name
}

// Key identifies a plan within a run.
func (p *Plan) Key() string {
	return p.Name() + "/" + string(p.Config)
}

// IsExcluded reports whether a library is a known omission for this plan.
func (p *Plan) IsExcluded(library string) bool {
	for _, e := range p.Excluded {
		if e.Library == library {
			return true
		}
	}
	return false
}

// Required returns the libraries that must be present after a build.
func (p *Plan) Required() []catalog.Library {
	out := make([]catalog.Library, 0, len(p.Libraries))
	for _, lib := range p.Libraries {
		if !p.IsExcluded(lib.Name) {
			out = append(out, lib)
		}
	}
	return out
}

// LibFile returns the platform file name for a library.
func (p *Plan) LibFile(library string) string {
	return p.Traits.LibFile(library)
}

// ArchError returns the resolution error for arch, if any.
func (p *Plan) ArchError(arch platform.Arch) error {
	return p.ArchErrors[arch]
}

// BuildableArches returns the arches that resolved a toolchain.
func (p *Plan) BuildableArches() []platform.Arch {
	out := make([]platform.Arch, 0, len(p.Arches))
	for _, a := range p.Arches {
		if p.ArchErrors[a] == nil {
			out = append(out, a)
		}
	}
	return out
}
