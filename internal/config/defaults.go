package config

import (
	"path/filepath"
	"runtime"
)

// Default values shared with the CLI help text.
const (
	DefaultRoot         = "build"
	DefaultOutput       = "dist"
	DefaultPatchDir     = "patches"
	DefaultStrip        = 1
	DefaultDepsFile     = "DEPS"
	DefaultGN           = "gn"
	DefaultNinja        = "ninja"
	DefaultCMake        = "cmake"
	DefaultLipo         = "lipo"
	DefaultUnicode      = "icu"
	DefaultProduct      = "skia"
	DefaultMaxRetries   = 2
	DefaultInitialDelay = "1s"
	DefaultMaxDelay     = "30s"
)

func applyDefaults(cfg *Config) {
	if cfg.Product == "" {
		cfg.Product = DefaultProduct
	}
	if cfg.Source.Name == "" {
		cfg.Source.Name = cfg.Product
	}
	if cfg.Source.DepsFile == "" {
		cfg.Source.DepsFile = DefaultDepsFile
	}

	if cfg.Patches.Directory == "" {
		cfg.Patches.Directory = DefaultPatchDir
	}
	if cfg.Patches.Strip <= 0 {
		cfg.Patches.Strip = DefaultStrip
	}
	for i := range cfg.Patches.Targets {
		if cfg.Patches.Targets[i].Strip <= 0 {
			cfg.Patches.Targets[i].Strip = cfg.Patches.Strip
		}
	}

	if cfg.Build.Root == "" {
		cfg.Build.Root = DefaultRoot
	}
	if cfg.Build.Output == "" {
		cfg.Build.Output = filepath.Join(cfg.Build.Root, DefaultOutput)
	}
	if cfg.Build.Jobs <= 0 {
		cfg.Build.Jobs = runtime.NumCPU()
	}
	if cfg.Build.Unicode == "" {
		cfg.Build.Unicode = DefaultUnicode
	}
	if cfg.Build.GN == "" {
		cfg.Build.GN = DefaultGN
	}
	if cfg.Build.Ninja == "" {
		cfg.Build.Ninja = DefaultNinja
	}
	if cfg.Build.CMake == "" {
		cfg.Build.CMake = DefaultCMake
	}
	if cfg.Build.Lipo == "" {
		cfg.Build.Lipo = DefaultLipo
	}

	// Unknown modes fall back to exponential rather than failing the run.
	cfg.Retry.Backoff = NormalizeRetryBackoff(string(cfg.Retry.Backoff))
	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffExponential
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = DefaultInitialDelay
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = DefaultMaxDelay
	}
	if cfg.Retry.MaxRetries == nil {
		n := DefaultMaxRetries
		cfg.Retry.MaxRetries = &n
	}

	for i := range cfg.Secondary {
		s := &cfg.Secondary[i]
		if s.CrateLibrary == "" {
			s.CrateLibrary = s.Library + "_static"
		}
	}
	for i := range cfg.Headers {
		if cfg.Headers[i].Pattern == "" {
			cfg.Headers[i].Pattern = "*.h"
		}
	}

	if cfg.StateDB == "" {
		cfg.StateDB = filepath.Join(cfg.Build.Root, "libforge.db")
	}
}
