// Package resolve turns a user request into an immutable Plan: the concrete
// architecture set, located toolchains, target triples and the expected
// library manifest. Every later stage reads the Plan and nothing else.
package resolve

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"git.home.luguber.info/inful/libforge/internal/catalog"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/platform"
)

// Request is one (platform, options) combination as parsed from the CLI.
type Request struct {
	Platform platform.Platform
	// Archs is the requested architecture list; empty selects the platform default.
	Archs   []platform.Arch
	Variant platform.Variant
	CRT     platform.CRT
	Config  platform.BuildType
	Unicode platform.Unicode
	Target  platform.Target
	// Toolchains holds explicit paths that take precedence over the environment.
	Toolchains map[ToolchainKind]string
	// MinOS overrides the per-platform deployment target.
	MinOS map[platform.Platform]string
}

// Resolver produces Plans from Requests.
type Resolver struct {
	catalog *catalog.Catalog
	env     Env
}

// NewResolver creates a resolver over a library catalog and a host view.
func NewResolver(cat *catalog.Catalog, env Env) *Resolver {
	if cat == nil {
		cat = catalog.Default()
	}
	if env.Getenv == nil || env.Exists == nil {
		env = OSEnv()
	}
	return &Resolver{catalog: cat, env: env}
}

// Expand splits a request for an Apple mobile platform into its device and
// simulator requests according to Target. Other requests are returned as is.
func (r *Resolver) Expand(req Request) []Request {
	sim, ok := req.Platform.Simulator()
	if !ok {
		return []Request{req}
	}
	switch req.Target {
	case platform.TargetSimulator:
		req.Platform = sim
		return []Request{req}
	case platform.TargetAll:
		device := req
		simulator := req
		simulator.Platform = sim
		return []Request{device, simulator}
	default:
		return []Request{req}
	}
}

// Resolve validates req and produces its Plan.
func (r *Resolver) Resolve(req Request) (*Plan, error) {
	traits, err := platform.Lookup(req.Platform)
	if err != nil {
		return nil, err
	}

	arches, universal, err := resolveArches(traits, req.Archs)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Platform:         req.Platform,
		Traits:           traits,
		Arches:           arches,
		Universal:        universal,
		Variant:          orDefault(req.Variant, platform.VariantCPU),
		CRT:              orDefault(req.CRT, platform.CRTStatic),
		Config:           orDefault(req.Config, platform.Release),
		Unicode:          orDefault(req.Unicode, platform.UnicodeICU),
		MinOS:            traits.MinOS,
		Toolchains:       make(map[platform.Arch]Toolchain, len(arches)),
		Triples:          make(map[platform.Arch]string, len(arches)),
		ArchErrors:       make(map[platform.Arch]error),
		EffectiveVariant: platform.VariantCPU,
	}

	if plan.CRT != platform.CRTStatic && !traits.MultipleCRT {
		slog.Debug("CRT mode ignored for platform",
			logfields.Platform(string(req.Platform)),
			slog.String("crt", string(plan.CRT)))
		plan.CRT = platform.CRTStatic
	}
	if plan.Variant == platform.VariantGPU && traits.GPU {
		plan.EffectiveVariant = platform.VariantGPU
	}
	if v, ok := req.MinOS[req.Platform]; ok && v != "" {
		plan.MinOS = v
	}

	for _, arch := range arches {
		tc, err := r.toolchainFor(req, traits, arch)
		if err != nil {
			plan.ArchErrors[arch] = err
			continue
		}
		plan.Toolchains[arch] = tc
		if plan.SDKRoot == "" {
			plan.SDKRoot = tc.SDKRoot
		}
		plan.Triples[arch] = Triple(req.Platform, arch, plan.MinOS)
	}
	if len(plan.ArchErrors) == len(arches) {
		return nil, plan.ArchErrors[arches[0]]
	}

	plan.Libraries = r.catalog.Libraries(traits.Family, plan.EffectiveVariant, plan.Unicode)
	plan.Excluded = r.catalog.Exclusions(req.Platform, plan.EffectiveVariant)
	return plan, nil
}

func (r *Resolver) toolchainFor(req Request, traits platform.Traits, arch platform.Arch) (Toolchain, error) {
	var tc Toolchain
	for _, kind := range r.env.kindsFor(req.Platform, arch) {
		path, ok := r.env.locate(kind, req.Toolchains[kind])
		if !ok {
			return Toolchain{}, errors.MissingToolchain(string(kind), string(arch)).
				WithContext("platform", string(req.Platform)).
				Build()
		}
		if kind == ToolchainSysroot {
			tc.Sysroot = path
			continue
		}
		tc.Kind = kind
		tc.Path = path
		tc.SDKRoot = sdkRoot(kind, path, traits, r.env.HostOS)
	}
	return tc, nil
}

func resolveArches(traits platform.Traits, requested []platform.Arch) ([]platform.Arch, bool, error) {
	if len(requested) == 0 {
		arches := append([]platform.Arch(nil), traits.DefaultArches...)
		return arches, traits.DefaultUniversal && len(arches) > 1, nil
	}

	seen := make(map[platform.Arch]bool, len(requested))
	arches := make([]platform.Arch, 0, len(requested))
	wantUniversal := false
	for _, a := range requested {
		if a == platform.Universal {
			if !traits.Universal {
				return nil, false, errors.UnsupportedArchitecture(string(traits.Platform), string(a)).Build()
			}
			wantUniversal = true
			continue
		}
		if !traits.SupportsArch(a) {
			return nil, false, errors.UnsupportedArchitecture(string(traits.Platform), string(a)).Build()
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		arches = append(arches, a)
	}

	if wantUniversal {
		if len(arches) > 0 {
			return nil, false, errors.ValidationError("universal cannot be combined with explicit architectures").
				WithContext("platform", string(traits.Platform)).
				Build()
		}
		return append([]platform.Arch(nil), traits.Arches...), true, nil
	}
	if len(arches) == 0 {
		return nil, false, errors.ValidationError("no architectures selected").
			WithContext("platform", string(traits.Platform)).
			Build()
	}
	return arches, traits.Universal && len(arches) > 1, nil
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

// Triple returns the compiler target triple for one arch of a platform.
func Triple(p platform.Platform, arch platform.Arch, minOS string) string {
	switch p {
	case platform.Mac:
		return fmt.Sprintf("%s-apple-macos%s", arch, minOS)
	case platform.IOS:
		return fmt.Sprintf("%s-apple-ios%s", arch, minOS)
	case platform.IOSSimulator:
		return fmt.Sprintf("%s-apple-ios%s-simulator", arch, minOS)
	case platform.VisionOS:
		return fmt.Sprintf("%s-apple-xros%s", arch, minOS)
	case platform.VisionOSSimulator:
		return fmt.Sprintf("%s-apple-xros%s-simulator", arch, minOS)
	case platform.Android:
		switch arch {
		case platform.Arm:
			return "armv7a-linux-androideabi" + minOS
		case platform.X64:
			return "x86_64-linux-android" + minOS
		case platform.X86:
			return "i686-linux-android" + minOS
		default:
			return "aarch64-linux-android" + minOS
		}
	case platform.Windows:
		if arch == platform.Arm64 {
			return "aarch64-pc-windows-msvc"
		}
		return "x86_64-pc-windows-msvc"
	case platform.Linux:
		if arch == platform.Arm64 {
			return "aarch64-unknown-linux-gnu"
		}
		return "x86_64-unknown-linux-gnu"
	case platform.Wasm:
		return "wasm32-unknown-emscripten"
	default:
		return ""
	}
}

// ParseArchList splits a comma separated --archs value.
func ParseArchList(raw string) []platform.Arch {
	var out []platform.Arch
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		out = append(out, platform.ParseArch(tok))
	}
	return out
}

// SortPlans orders plans by name then config for stable output.
func SortPlans(plans []*Plan) {
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Key() < plans[j].Key()
	})
}
