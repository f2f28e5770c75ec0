package build

import (
	"context"
	"sort"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/metrics"
	"git.home.luguber.info/inful/libforge/internal/observability"
	"git.home.luguber.info/inful/libforge/internal/platform"
	"git.home.luguber.info/inful/libforge/internal/resolve"
)

// resolveAll turns req into previews. A plan whose every arch lacks a
// toolchain becomes a failed PlanResult; any other resolution error aborts.
func (s *DefaultService) resolveAll(ctx context.Context, req Request) ([]Preview, []PlanResult, error) {
	if len(req.Platforms) == 0 {
		return nil, nil, ErrNoPlatforms
	}
	base, err := s.baseRequest(req)
	if err != nil {
		return nil, nil, err
	}

	var (
		previews   []Preview
		unresolved []PlanResult
		seen       = make(map[string]bool)
	)
	for _, p := range req.Platforms {
		r := base
		r.Platform = p
		for _, expanded := range s.resolver.Expand(r) {
			plan, err := s.resolver.Resolve(expanded)
			if err != nil {
				if !errors.HasCategory(err, errors.CategoryToolchain) {
					return nil, nil, err
				}
				name := string(expanded.Platform)
				if seen[name] {
					continue
				}
				seen[name] = true
				observability.ErrorContext(ctx, "No toolchain for platform", logfields.Platform(name), logfields.Error(err))
				s.recorder.IncPlanOutcome(name, metrics.PlanFailed)
				unresolved = append(unresolved, PlanResult{Name: name, Status: StatusFailed, Err: err})
				continue
			}
			if seen[plan.Key()] {
				continue
			}
			seen[plan.Key()] = true

			cfg, err := s.synth.Synthesize(plan)
			if err != nil {
				return nil, nil, err
			}
			previews = append(previews, Preview{Plan: plan, Config: cfg})
		}
	}

	sort.SliceStable(previews, func(i, j int) bool {
		return previews[i].Plan.Key() < previews[j].Plan.Key()
	})
	return previews, unresolved, nil
}

func (s *DefaultService) baseRequest(req Request) (resolve.Request, error) {
	out := resolve.Request{
		Archs:      req.Archs,
		Variant:    req.Variant,
		CRT:        req.CRT,
		Config:     req.Config,
		Unicode:    req.Unicode,
		Target:     req.Target,
		Toolchains: make(map[resolve.ToolchainKind]string),
		MinOS:      make(map[platform.Platform]string),
	}
	for kind, path := range s.cfg.Toolchains {
		out.Toolchains[resolve.ToolchainKind(kind)] = path
	}
	for kind, path := range req.Toolchains {
		out.Toolchains[kind] = path
	}
	for id, v := range s.cfg.Build.MinOS {
		p, err := platform.Parse(id)
		if err != nil {
			return out, errors.ConfigError("unknown platform in build.min_os").
				WithContext("platform", id).
				WithCause(err).
				Build()
		}
		out.MinOS[p] = v
	}
	if out.Unicode == "" && s.cfg.Build.Unicode != "" {
		u, err := platform.ParseUnicode(s.cfg.Build.Unicode)
		if err != nil {
			return out, errors.ConfigError("invalid build.unicode").WithCause(err).Build()
		}
		out.Unicode = u
	}
	return out, nil
}
