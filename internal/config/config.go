// Package config loads the libforge project file (libforge.yaml).
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
)

// CurrentVersion is the only accepted value of the version key.
const CurrentVersion = "1"

// DefaultPath is the project file looked up when --config is not given.
const DefaultPath = "libforge.yaml"

// Config is the project description: what to fetch, how to patch and build
// it, and where to put the results.
type Config struct {
	Version string `yaml:"version"`
	// Product prefixes every distribution entry (<product>-<platform>-<variant>).
	Product string       `yaml:"product"`
	Source  SourceConfig `yaml:"source"`
	Patches PatchConfig  `yaml:"patches,omitempty"`
	Build   BuildConfig  `yaml:"build,omitempty"`
	Retry   RetryConfig  `yaml:"retry,omitempty"`

	// Toolchains holds explicit toolchain paths keyed by kind (xcode, ndk,
	// msvc, llvm, sysroot, emsdk). CLI flags take precedence.
	Toolchains map[string]string `yaml:"toolchains,omitempty"`

	Secondary []SecondaryConfig `yaml:"secondary,omitempty"`
	CMake     []CMakeConfig     `yaml:"cmake,omitempty"`
	Headers   []HeaderConfig    `yaml:"headers,omitempty"`
	Bundles   []BundleConfig    `yaml:"bundles,omitempty"`

	StateDB     string `yaml:"state_db,omitempty"`
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// SourceConfig pins the upstream tree.
type SourceConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Revision string `yaml:"revision"`
	// Branch is fetched when Revision is empty.
	Branch      string   `yaml:"branch,omitempty"`
	Shallow     bool     `yaml:"shallow,omitempty"`
	DepsFile    string   `yaml:"deps_file,omitempty"`
	ExcludeDeps []string `yaml:"exclude_deps,omitempty"`
}

// PatchConfig locates patch files and maps them onto source subtrees.
type PatchConfig struct {
	Directory string        `yaml:"directory,omitempty"`
	Strip     int           `yaml:"strip,omitempty"`
	Targets   []PatchTarget `yaml:"targets,omitempty"`
}

// PatchTarget routes patches whose file name starts with Prefix into Path.
type PatchTarget struct {
	Prefix string `yaml:"prefix"`
	Path   string `yaml:"path"`
	Strip  int    `yaml:"strip,omitempty"`
}

// BuildConfig holds backend and layout settings.
type BuildConfig struct {
	Root    string `yaml:"root,omitempty"`
	Output  string `yaml:"output,omitempty"`
	Jobs    int    `yaml:"jobs,omitempty"`
	Unicode string `yaml:"unicode,omitempty"`
	GN      string `yaml:"gn,omitempty"`
	Ninja   string `yaml:"ninja,omitempty"`
	CMake   string `yaml:"cmake,omitempty"`
	Lipo    string `yaml:"lipo,omitempty"`
	// GNArgs are applied last, in sorted key order.
	GNArgs map[string]any `yaml:"gn_args,omitempty"`
	// MinOS overrides deployment targets keyed by platform id.
	MinOS map[string]string `yaml:"min_os,omitempty"`
}

// SecondaryConfig describes a Cargo crate built alongside the primary tree.
type SecondaryConfig struct {
	Name         string   `yaml:"name"`
	CrateDir     string   `yaml:"crate_dir"`
	Library      string   `yaml:"library"`
	CrateLibrary string   `yaml:"crate_library,omitempty"`
	Header       string   `yaml:"header,omitempty"`
	Platforms    []string `yaml:"platforms,omitempty"`
}

// CMakeConfig describes a CMake project built per arch alongside the primary
// tree, such as libwebp, draco or libuv.
type CMakeConfig struct {
	Name string `yaml:"name"`
	// SourceDir holds CMakeLists.txt; relative paths are below the source root.
	SourceDir string `yaml:"source_dir"`
	// Libraries are archive names without prefix or suffix.
	Libraries []string `yaml:"libraries"`
	// Options are extra -D definitions passed at configure time.
	Options    []string `yaml:"options,omitempty"`
	HeaderDirs []string `yaml:"header_dirs,omitempty"`
	Platforms  []string `yaml:"platforms,omitempty"`
}

// HeaderConfig adds a header packaging rule.
type HeaderConfig struct {
	Source  string `yaml:"source"`
	Dest    string `yaml:"dest"`
	Pattern string `yaml:"pattern,omitempty"`
}

// BundleKind enumerates supported umbrella artifacts.
type BundleKind string

const BundleXCFramework BundleKind = "xcframework"

// BundleConfig composes finalized entries into one artifact.
type BundleConfig struct {
	Name      string     `yaml:"name"`
	Kind      BundleKind `yaml:"kind"`
	Platforms []string   `yaml:"platforms"`
}

// Load reads, expands, defaults and validates a project file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigError("configuration file not found: " + configPath).
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Fatal().
			Build()
	}

	return Parse(data)
}

// Parse decodes project file content. Environment references are expanded
// before decoding.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError("unsupported configuration version: " + cfg.Version + " (expected " + CurrentVersion + ")").Build()
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no source.
// It is enough for commands that never touch the network (plan).
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	applyDefaults(cfg)
	return cfg
}

// Init writes an example project file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists: " + configPath + " (use --force to overwrite)").Build()
	}

	maxRetries := 2
	example := Config{
		Version: CurrentVersion,
		Product: "skia",
		Source: SourceConfig{
			Name:        "skia",
			URL:         "https://skia.googlesource.com/skia.git",
			Revision:    "chrome/m126",
			DepsFile:    "DEPS",
			ExcludeDeps: []string{"third_party/externals/emsdk", "third_party/externals/opengl-registry"},
		},
		Patches: PatchConfig{
			Directory: "patches",
			Strip:     1,
			Targets:   []PatchTarget{{Prefix: "dawn-", Path: "third_party/externals/dawn"}},
		},
		Build: BuildConfig{
			Root:    "build",
			Output:  "dist",
			Unicode: "icu",
			GNArgs:  map[string]any{"skia_enable_pdf": false},
		},
		Retry: RetryConfig{Backoff: RetryBackoffExponential, InitialDelay: "1s", MaxDelay: "30s", MaxRetries: &maxRetries},
		Secondary: []SecondaryConfig{{
			Name:         "swc",
			CrateDir:     "third_party/swc-static",
			Library:      "swc",
			CrateLibrary: "swc_static",
			Header:       "include/swc.h",
			Platforms:    []string{"mac", "linux", "win"},
		}},
		CMake: []CMakeConfig{{
			Name:       "webp",
			SourceDir:  "third_party/externals/libwebp",
			Libraries:  []string{"webp", "webpdecoder", "webpdemux", "webpmux", "sharpyuv"},
			Options:    []string{"-DWEBP_BUILD_CWEBP=OFF", "-DWEBP_BUILD_DWEBP=OFF", "-DWEBP_BUILD_EXTRAS=OFF"},
			HeaderDirs: []string{"src/webp", "sharpyuv"},
		}},
		Bundles: []BundleConfig{{Name: "skia-ios", Kind: BundleXCFramework, Platforms: []string{"ios", "iossim"}}},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
