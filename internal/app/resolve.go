package app

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/core"
	"github.com/ijt/xylem/internal/types"
)

func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	ic, err := s.installerContext(ctx, req.Target)
	if err != nil {
		return ResolveResult{}, err
	}
	plan, failures, err := s.resolvePlan(ctx, ic, req)
	if err != nil {
		return ResolveResult{}, err
	}
	if path := strings.TrimSpace(req.PlanOut); path != "" {
		if err := s.PlanWriter.WritePlan(path, plan); err != nil {
			return ResolveResult{}, err
		}
		log.Ctx(ctx).Info().Str("path", path).Int("steps", len(plan.Steps)).Msg("plan written")
	}
	return ResolveResult{Plan: plan, Failures: failures}, nil
}

// resolvePlan resolves resources and bare keys into one plan.  Steps for
// resources come first, followed by steps for keys not already covered.
func (s Service) resolvePlan(ctx context.Context, ic *core.InstallerContext, req ResolveRequest) (types.InstallPlan, map[string]error, error) {
	if !req.All && len(req.Resources) == 0 && len(req.Keys) == 0 {
		return types.InstallPlan{}, nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no resources or keys given")
	}
	lookup, loader, err := s.openLookup(req.SourcesPath)
	if err != nil {
		return types.InstallPlan{}, nil, err
	}
	osName, osVersion, err := ic.OSNameAndVersion(ctx)
	if err != nil {
		return types.InstallPlan{}, nil, err
	}

	resources := req.Resources
	if req.All {
		resources, err = loader.LoadableResources(ctx)
		if err != nil {
			return types.InstallPlan{}, nil, err
		}
	}

	var steps []types.InstallStep
	failures := map[string]error{}
	if len(resources) > 0 {
		resourceSteps, resourceFailures, err := lookup.ResolveAll(ctx, resources, ic, req.Implicit)
		if err != nil {
			return types.InstallPlan{}, nil, err
		}
		steps = append(steps, resourceSteps...)
		for name, failure := range resourceFailures {
			failures[name] = failure
		}
	}
	if len(req.Keys) > 0 {
		view := strings.TrimSpace(req.View)
		if view == "" {
			view = types.UnderlayView
			if err := lookup.CreateUnderlay(ctx); err != nil {
				return types.InstallPlan{}, nil, err
			}
		}
		keySteps, keyFailures, err := lookup.ResolveKeys(ctx, req.Keys, view, ic)
		if err != nil {
			return types.InstallPlan{}, nil, err
		}
		for _, step := range keySteps {
			if !slices.ContainsFunc(steps, func(existing types.InstallStep) bool {
				return existing.InstallerKey == step.InstallerKey && slices.Equal(existing.Packages, step.Packages)
			}) {
				steps = append(steps, step)
			}
		}
		for name, failure := range keyFailures {
			failures[name] = failure
		}
	}

	plan := types.InstallPlan{OSName: osName, OSVersion: osVersion, Steps: steps}
	if len(failures) > 0 {
		plan.Failures = map[string]string{}
		for name, failure := range failures {
			plan.Failures[name] = failure.Error()
		}
		emitHints(s.Hints, failureHints(failures))
	}
	log.Ctx(ctx).Debug().
		Str("os", osName).
		Str("os_version", osVersion).
		Int("steps", len(steps)).
		Int("failures", len(failures)).
		Msg("plan resolved")
	return plan, failures, nil
}

// planFor returns the plan stored at planIn, or resolves one.  Failures
// recorded in a stored plan are carried over.
func (s Service) planFor(ctx context.Context, ic *core.InstallerContext, req ResolveRequest, planIn string) (types.InstallPlan, map[string]error, error) {
	if strings.TrimSpace(planIn) == "" {
		return s.resolvePlan(ctx, ic, req)
	}
	plan, err := s.PlanReader.ReadPlan(planIn)
	if err != nil {
		return types.InstallPlan{}, nil, err
	}
	failures := map[string]error{}
	for name, message := range plan.Failures {
		failures[name] = errors.New(message)
	}
	log.Ctx(ctx).Debug().Str("path", planIn).Str("os", plan.OSName).Msg("plan loaded")
	return plan, failures, nil
}
