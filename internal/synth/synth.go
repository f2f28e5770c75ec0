// Package synth builds the GN argument set for every arch of a Plan from a
// fixed stack of flat overlays.
package synth

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/gnargs"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

// Layer names, in application order.
const (
	LayerDefaults = "defaults"
	LayerFamily   = "family"
	LayerPlatform = "platform"
	LayerFeatures = "features"
	LayerArch     = "arch"
	LayerUser     = "user"
)

// Result holds the merged configuration for each arch of one plan.
type Result struct {
	Plan    *resolve.Plan
	configs map[platform.Arch]*gnargs.Config
}

// ForArch returns the merged configuration for arch, or nil when the arch
// is not part of the plan or failed resolution.
func (r *Result) ForArch(arch platform.Arch) *gnargs.Config {
	return r.configs[arch]
}

// Hash combines the per-arch hashes in plan arch order.
func (r *Result) Hash() string {
	all := &gnargs.Config{}
	for _, arch := range r.Plan.Arches {
		if cfg := r.configs[arch]; cfg != nil {
			all.Set(string(arch), gnargs.Str(cfg.Hash()))
		}
	}
	return all.Hash()
}

// Synthesizer applies the layer stack. The zero value has no user args.
type Synthesizer struct {
	extra map[string]any
}

// NewSynthesizer returns a synthesizer that applies extra as the last layer.
func NewSynthesizer(extra map[string]any) *Synthesizer {
	return &Synthesizer{extra: extra}
}

// Synthesize builds the configuration for every buildable arch of plan.
func (s *Synthesizer) Synthesize(plan *resolve.Plan) (*Result, error) {
	user, err := userLayer(s.extra)
	if err != nil {
		return nil, err
	}

	if plan.Variant == platform.VariantGPU && plan.EffectiveVariant != platform.VariantGPU {
		slog.Warn("GPU variant not supported on platform, building cpu libraries",
			logfields.Platform(string(plan.Platform)),
			logfields.Variant(string(plan.Variant)))
	}

	tc := primaryToolchain(plan)
	shared := []gnargs.Layer{
		defaultsLayer(plan),
		familyLayer(plan, tc),
		platformLayer(plan),
		featureLayer(plan),
	}

	res := &Result{Plan: plan, configs: make(map[platform.Arch]*gnargs.Config, len(plan.Arches))}
	for _, arch := range plan.BuildableArches() {
		cfg := &gnargs.Config{}
		for _, l := range shared {
			cfg.Overlay(l)
		}
		cfg.Overlay(archLayer(plan, arch))
		cfg.Overlay(user)
		res.configs[arch] = cfg
	}
	return res, nil
}

func primaryToolchain(plan *resolve.Plan) resolve.Toolchain {
	for _, arch := range plan.Arches {
		if tc, ok := plan.Toolchains[arch]; ok {
			return tc
		}
	}
	return resolve.Toolchain{}
}

func defaultsLayer(plan *resolve.Plan) gnargs.Layer {
	l := gnargs.Layer{Name: LayerDefaults}
	debug := plan.Config.IsDebug()
	l.Add("is_official_build", gnargs.Bool(!debug)).
		Add("is_debug", gnargs.Bool(debug)).
		Add("is_component_build", gnargs.Bool(false)).
		Add("is_trivial_abi", gnargs.Bool(false)).
		Add("target_os", gnargs.Str(plan.Traits.GNOS)).
		Add("skia_enable_tools", gnargs.Bool(false)).
		Add("skia_enable_pdf", gnargs.Bool(false)).
		Add("skia_enable_svg", gnargs.Bool(true)).
		Add("skia_enable_skottie", gnargs.Bool(true)).
		Add("skia_enable_skshaper", gnargs.Bool(true)).
		Add("skia_enable_skparagraph", gnargs.Bool(true)).
		Add("skia_use_harfbuzz", gnargs.Bool(true)).
		Add("skia_use_expat", gnargs.Bool(true)).
		Add("skia_use_libheif", gnargs.Bool(false)).
		Add("skia_use_system_expat", gnargs.Bool(false)).
		Add("skia_use_system_harfbuzz", gnargs.Bool(false)).
		Add("skia_use_system_icu", gnargs.Bool(false)).
		Add("skia_use_system_libjpeg_turbo", gnargs.Bool(false)).
		Add("skia_use_system_libpng", gnargs.Bool(false)).
		Add("skia_use_system_libwebp", gnargs.Bool(false)).
		Add("skia_use_system_zlib", gnargs.Bool(false))
	if debug {
		l.Add("skia_enable_spirv_validation", gnargs.Bool(false))
	}
	return l
}

func familyLayer(plan *resolve.Plan, tc resolve.Toolchain) gnargs.Layer {
	l := gnargs.Layer{Name: LayerFamily}
	switch plan.Traits.Family {
	case platform.FamilyApple:
		l.Add("skia_use_gl", gnargs.Bool(false)).
			Add("skia_use_fontconfig", gnargs.Bool(false)).
			Add("skia_use_freetype", gnargs.Bool(false))
		if plan.SDKRoot != "" {
			l.Add("xcode_sysroot", gnargs.Str(plan.SDKRoot))
		}
	case platform.FamilyAndroid:
		l.Add("ndk", gnargs.Str(tc.Path)).
			Add("ndk_api", gnargs.Int(atoiOr(plan.MinOS, 24))).
			Add("skia_use_gl", gnargs.Bool(false)).
			Add("skia_use_fontconfig", gnargs.Bool(false)).
			Add("skia_use_freetype", gnargs.Bool(true))
	case platform.FamilyWindows:
		l.Add("win_vc", gnargs.Str(tc.Path)).
			Add("skia_use_gl", gnargs.Bool(false)).
			Add("skia_use_fontconfig", gnargs.Bool(false))
	case platform.FamilyLinux:
		l.Add("cc", gnargs.Str(filepath.Join(tc.Path, "bin", "clang"))).
			Add("cxx", gnargs.Str(filepath.Join(tc.Path, "bin", "clang++"))).
			Add("skia_use_gl", gnargs.Bool(false)).
			Add("skia_use_fontconfig", gnargs.Bool(true)).
			Add("skia_use_freetype", gnargs.Bool(true))
	case platform.FamilyWasm:
		emscripten := filepath.Join(tc.Path, "upstream", "emscripten")
		l.Add("cc", gnargs.Str(filepath.Join(emscripten, "emcc"))).
			Add("cxx", gnargs.Str(filepath.Join(emscripten, "em++"))).
			Add("ar", gnargs.Str(filepath.Join(emscripten, "emar"))).
			Add("skia_use_gl", gnargs.Bool(false)).
			Add("skia_use_webgl", gnargs.Bool(false)).
			Add("skia_use_fontconfig", gnargs.Bool(false)).
			Add("skia_use_freetype", gnargs.Bool(true))
	}
	return l
}

func platformLayer(plan *resolve.Plan) gnargs.Layer {
	l := gnargs.Layer{Name: LayerPlatform}
	switch plan.Platform {
	case platform.Mac:
		l.Add("mac_deployment_target", gnargs.Str(plan.MinOS))
	case platform.IOS, platform.VisionOS:
		l.Add("ios_min_target", gnargs.Str(plan.MinOS)).
			Add("ios_use_simulator", gnargs.Bool(false))
	case platform.IOSSimulator, platform.VisionOSSimulator:
		l.Add("ios_min_target", gnargs.Str(plan.MinOS)).
			Add("ios_use_simulator", gnargs.Bool(true))
	}
	if plan.Platform == platform.VisionOS || plan.Platform == platform.VisionOSSimulator {
		l.Add("skia_ios_use_signing", gnargs.Bool(false))
	}
	return l
}

func featureLayer(plan *resolve.Plan) gnargs.Layer {
	l := gnargs.Layer{Name: LayerFeatures}
	gpu := plan.EffectiveVariant == platform.VariantGPU
	l.Add("skia_use_dawn", gnargs.Bool(gpu)).
		Add("skia_enable_graphite", gnargs.Bool(gpu)).
		Add("skia_enable_ganesh", gnargs.Bool(false))
	if plan.Traits.Family == platform.FamilyApple {
		l.Add("skia_use_metal", gnargs.Bool(gpu))
	}

	icu := plan.Unicode != platform.UnicodeLibgrapheme
	l.Add("skia_use_icu", gnargs.Bool(icu)).
		Add("skia_use_libgrapheme", gnargs.Bool(!icu)).
		Add("skia_use_client_icu", gnargs.Bool(false))

	if flags := baseCFlags(plan); len(flags) > 0 {
		l.Add("extra_cflags", gnargs.List(flags...))
	}
	return l
}

func archLayer(plan *resolve.Plan, arch platform.Arch) gnargs.Layer {
	l := gnargs.Layer{Name: LayerArch}
	l.Add("target_cpu", gnargs.Str(arch.GNCPU()))

	var cross []string
	tc := plan.Toolchains[arch]
	switch {
	case plan.Platform == platform.Linux && tc.Sysroot != "":
		cross = []string{"--sysroot=" + tc.Sysroot, "--target=" + plan.Triples[arch]}
	case plan.Platform == platform.VisionOS || plan.Platform == platform.VisionOSSimulator:
		cross = []string{"--target=" + plan.Triples[arch]}
	}
	if len(cross) > 0 {
		l.Add("extra_cflags", gnargs.List(append(baseCFlags(plan), cross...)...)).
			Add("extra_ldflags", gnargs.List(cross...))
	}
	return l
}

// baseCFlags are the compiler flags every arch of the plan shares.
func baseCFlags(plan *resolve.Plan) []string {
	switch plan.Traits.Family {
	case platform.FamilyWindows:
		flag := "/MT"
		if plan.CRT == platform.CRTDynamic {
			flag = "/MD"
		}
		if plan.Config.IsDebug() {
			flag += "d"
		}
		return []string{flag}
	case platform.FamilyLinux, platform.FamilyAndroid:
		return []string{"-fPIC"}
	default:
		return nil
	}
}

func userLayer(extra map[string]any) (gnargs.Layer, error) {
	l := gnargs.Layer{Name: LayerUser}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := toValue(extra[k])
		if err != nil {
			return gnargs.Layer{}, errors.ConfigError(fmt.Sprintf("invalid gn_args value for %s", k)).
				WithCause(err).
				WithContext("field", "build.gn_args."+k).
				Build()
		}
		l.Add(k, v)
	}
	return l, nil
}

func toValue(raw any) (gnargs.Value, error) {
	switch v := raw.(type) {
	case string:
		return gnargs.Str(v), nil
	case bool:
		return gnargs.Bool(v), nil
	case int:
		return gnargs.Int(v), nil
	case int64:
		return gnargs.Int(int(v)), nil
	case float64:
		if v != math.Trunc(v) {
			return gnargs.Value{}, fmt.Errorf("non-integer number %v", v)
		}
		return gnargs.Int(int(v)), nil
	case []string:
		return gnargs.List(v...), nil
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return gnargs.Value{}, fmt.Errorf("list items must be strings, got %T", item)
			}
			items = append(items, s)
		}
		return gnargs.List(items...), nil
	default:
		return gnargs.Value{}, fmt.Errorf("unsupported type %T", raw)
	}
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
