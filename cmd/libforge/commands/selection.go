package commands

import (
	"strings"

	"git.home.luguber.info/inful/libforge/internal/build"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

// Selection is the platform and option selection shared by build and plan.
type Selection struct {
	Platforms string `arg:"" help:"Comma-separated platforms: mac, ios, iossim, visionos, visionossim, android, win, linux, wasm"`
	Archs     string `help:"Comma-separated architectures, or 'universal'"`
	Variant   string `help:"cpu or gpu" default:"cpu"`
	CRT       string `name:"crt" help:"static or dynamic (Windows only)" default:"static"`
	Config    string `name:"config" help:"Debug or Release" default:"Release"`
	Target    string `help:"device, simulator or all (Apple mobile platforms)" default:"device"`
	Unicode   string `help:"icu or libgrapheme (defaults to build.unicode)"`

	NDK     string `name:"ndk" help:"Android NDK path" type:"path"`
	Xcode   string `name:"xcode" help:"Xcode developer directory" type:"path"`
	MSVC    string `name:"msvc" help:"MSVC VC directory" type:"path"`
	LLVM    string `name:"llvm" help:"LLVM installation" type:"path"`
	Sysroot string `name:"sysroot" help:"Linux arm64 sysroot" type:"path"`
	Emsdk   string `name:"emsdk" help:"Emscripten SDK" type:"path"`
}

// Request converts the flags into a build request. Every value is validated
// here so bad input fails before any work starts.
func (s *Selection) Request() (build.Request, error) {
	var req build.Request
	for _, id := range strings.Split(s.Platforms, ",") {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		p, err := platform.Parse(id)
		if err != nil {
			return req, err
		}
		req.Platforms = append(req.Platforms, p)
	}
	req.Archs = resolve.ParseArchList(s.Archs)

	var err error
	if req.Variant, err = platform.ParseVariant(s.Variant); err != nil {
		return req, err
	}
	if req.CRT, err = platform.ParseCRT(s.CRT); err != nil {
		return req, err
	}
	if req.Config, err = platform.ParseBuildType(s.Config); err != nil {
		return req, err
	}
	if req.Target, err = platform.ParseTarget(s.Target); err != nil {
		return req, err
	}
	if s.Unicode != "" {
		if req.Unicode, err = platform.ParseUnicode(s.Unicode); err != nil {
			return req, err
		}
	}

	req.Toolchains = make(map[resolve.ToolchainKind]string)
	for kind, path := range map[resolve.ToolchainKind]string{
		resolve.ToolchainNDK:     s.NDK,
		resolve.ToolchainXcode:   s.Xcode,
		resolve.ToolchainMSVC:    s.MSVC,
		resolve.ToolchainLLVM:    s.LLVM,
		resolve.ToolchainSysroot: s.Sysroot,
		resolve.ToolchainEmsdk:   s.Emsdk,
	} {
		if path != "" {
			req.Toolchains[kind] = path
		}
	}
	return req, nil
}
