package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/platform"
)

// Validate checks a defaulted configuration. The first problem found is
// returned as a classified config error.
func Validate(cfg *Config) error {
	checks := []func(*Config) error{
		validateSource,
		validatePatches,
		validateBuild,
		validateRetry,
		validateSecondary,
		validateCMake,
		validateBundles,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return errors.ConfigError(fmt.Sprintf(format, args...)).
		WithContext("field", field).
		Build()
}

func validateSource(cfg *Config) error {
	if strings.ContainsAny(cfg.Source.Name, `/\`) || cfg.Source.Name == ".." {
		return invalid("source.name", "source name must be a single path element: %q", cfg.Source.Name)
	}
	if cfg.Source.URL != "" && cfg.Source.Revision == "" && cfg.Source.Branch == "" {
		return invalid("source.revision", "source %s needs a revision or branch", cfg.Source.Name)
	}
	for _, dep := range cfg.Source.ExcludeDeps {
		if filepath.IsAbs(dep) || strings.HasPrefix(filepath.Clean(dep), "..") {
			return invalid("source.exclude_deps", "excluded dependency must be relative to the source root: %q", dep)
		}
	}
	return nil
}

func validatePatches(cfg *Config) error {
	seen := map[string]bool{}
	for _, t := range cfg.Patches.Targets {
		if t.Prefix == "" {
			return invalid("patches.targets", "patch target prefix cannot be empty")
		}
		if seen[t.Prefix] {
			return invalid("patches.targets", "duplicate patch target prefix: %s", t.Prefix)
		}
		seen[t.Prefix] = true
		if filepath.IsAbs(t.Path) {
			return invalid("patches.targets", "patch target path must be relative: %s", t.Path)
		}
	}
	return nil
}

func validateBuild(cfg *Config) error {
	if _, err := platform.ParseUnicode(cfg.Build.Unicode); err != nil {
		return invalid("build.unicode", "%v", err)
	}
	if filepath.Clean(cfg.Build.Output) == filepath.Clean(cfg.Build.Root) {
		return invalid("build.output", "build.output must differ from build.root")
	}
	for id := range cfg.Build.MinOS {
		if _, err := platform.Parse(id); err != nil {
			return invalid("build.min_os", "unknown platform in min_os: %s", id)
		}
	}
	for key, v := range cfg.Build.GNArgs {
		switch v.(type) {
		case bool, int, string, []any:
		default:
			return invalid("build.gn_args", "unsupported value type %T for gn arg %s", v, key)
		}
	}
	return nil
}

func validateRetry(cfg *Config) error {
	initial, err := time.ParseDuration(cfg.Retry.InitialDelay)
	if err != nil || initial <= 0 {
		return invalid("retry.initial_delay", "invalid retry.initial_delay: %q", cfg.Retry.InitialDelay)
	}
	maxDelay, err := time.ParseDuration(cfg.Retry.MaxDelay)
	if err != nil || maxDelay <= 0 {
		return invalid("retry.max_delay", "invalid retry.max_delay: %q", cfg.Retry.MaxDelay)
	}
	if *cfg.Retry.MaxRetries < 0 {
		return invalid("retry.max_retries", "retry.max_retries cannot be negative")
	}
	return nil
}

func validateSecondary(cfg *Config) error {
	for _, s := range cfg.Secondary {
		if s.Name == "" || s.CrateDir == "" || s.Library == "" {
			return invalid("secondary", "secondary crate needs name, crate_dir and library")
		}
		for _, id := range s.Platforms {
			if _, err := platform.Parse(id); err != nil {
				return invalid("secondary.platforms", "secondary %s: unknown platform %s", s.Name, id)
			}
		}
	}
	return nil
}

func validateCMake(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.CMake))
	for _, c := range cfg.CMake {
		if c.Name == "" || c.SourceDir == "" || len(c.Libraries) == 0 {
			return invalid("cmake", "cmake project needs name, source_dir and libraries")
		}
		if seen[c.Name] {
			return invalid("cmake", "duplicate cmake project %s", c.Name)
		}
		seen[c.Name] = true
		for _, opt := range c.Options {
			if !strings.HasPrefix(opt, "-D") {
				return invalid("cmake.options", "cmake %s: option %q is not a -D definition", c.Name, opt)
			}
		}
		for _, id := range c.Platforms {
			if _, err := platform.Parse(id); err != nil {
				return invalid("cmake.platforms", "cmake %s: unknown platform %s", c.Name, id)
			}
		}
	}
	return nil
}

func validateBundles(cfg *Config) error {
	for _, b := range cfg.Bundles {
		if b.Name == "" {
			return invalid("bundles", "bundle name cannot be empty")
		}
		if b.Kind != BundleXCFramework {
			return invalid("bundles.kind", "bundle %s: unsupported kind %q", b.Name, b.Kind)
		}
		if len(b.Platforms) == 0 {
			return invalid("bundles.platforms", "bundle %s lists no platforms", b.Name)
		}
		for _, id := range b.Platforms {
			p, err := platform.Parse(id)
			if err != nil {
				return invalid("bundles.platforms", "bundle %s: unknown platform %s", b.Name, id)
			}
			if platform.MustLookup(p).Family != platform.FamilyApple {
				return invalid("bundles.platforms", "bundle %s: xcframework needs Apple platforms, got %s", b.Name, id)
			}
		}
	}
	return nil
}

// RetryDurations returns the parsed retry delays. Validate guarantees they parse.
func (r RetryConfig) RetryDurations() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(r.InitialDelay)
	maxDelay, _ = time.ParseDuration(r.MaxDelay)
	return initial, maxDelay
}
