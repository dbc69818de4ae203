package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/ports"
	"github.com/ijt/xylem/internal/types"
)

// presenceChecker is implemented by installers that can observe whether
// an item is installed.
type presenceChecker interface {
	CanDetect() bool
}

// Install runs the install commands of every plan step in order.  If any
// resource or key failed to resolve nothing is installed unless
// ContinueOnError is set.  With DryRun the commands are only collected.
func (s Service) Install(ctx context.Context, req InstallRequest) (InstallResult, error) {
	ic, err := s.installerContext(ctx, req.Target)
	if err != nil {
		return InstallResult{}, err
	}
	plan, failures, err := s.planFor(ctx, ic, req.ResolveRequest, req.PlanIn)
	if err != nil {
		return InstallResult{}, err
	}
	result := InstallResult{Plan: plan, Failures: failures}
	if len(failures) > 0 && !req.ContinueOnError {
		log.Ctx(ctx).Warn().Int("failures", len(failures)).Msg("not installing, some dependencies could not be resolved")
		return result, nil
	}

	for _, step := range plan.Steps {
		installer, err := ic.Installer(step.InstallerKey)
		if err != nil {
			return result, err
		}
		commands, err := installer.InstallCommands(ctx, step.Packages, req.Interactive, req.Reinstall)
		if err != nil {
			return result, err
		}
		result.Commands = append(result.Commands, commands...)
		if req.DryRun || len(commands) == 0 {
			continue
		}
		for _, argv := range commands {
			log.Ctx(ctx).Info().Str("installer", step.InstallerKey).Strs("argv", argv).Msg("installing")
			if err := s.Runner.Run(ctx, argv); err != nil {
				return result, err
			}
		}
		if err := verifyInstalled(ctx, step.InstallerKey, installer, step.Packages); err != nil {
			return result, err
		}
	}
	return result, nil
}

func verifyInstalled(ctx context.Context, key string, installer ports.InstallerPort, packages []string) error {
	if checker, ok := installer.(presenceChecker); !ok || !checker.CanDetect() {
		return nil
	}
	for _, item := range packages {
		installed, err := installer.IsInstalled(ctx, item)
		if err != nil {
			return err
		}
		if !installed {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("failed to detect successful installation of [%s] with installer [%s]", item, key))
		}
	}
	return nil
}

// Remove runs remove commands for the plan steps in reverse order, so
// dependents go before what they depend on.  Steps whose installer cannot
// remove are reported in Failures under the installer key.
func (s Service) Remove(ctx context.Context, req RemoveRequest) (RemoveResult, error) {
	ic, err := s.installerContext(ctx, req.Target)
	if err != nil {
		return RemoveResult{}, err
	}
	plan, failures, err := s.planFor(ctx, ic, req.ResolveRequest, req.PlanIn)
	if err != nil {
		return RemoveResult{}, err
	}
	result := RemoveResult{Failures: failures}

	steps := slices.Clone(plan.Steps)
	slices.Reverse(steps)
	for _, step := range steps {
		installer, err := ic.Installer(step.InstallerKey)
		if err != nil {
			return result, err
		}
		commands, err := installer.RemoveCommands(ctx, step.Packages, req.Interactive)
		if err != nil {
			if errbuilder.CodeOf(err) != errbuilder.CodeFailedPrecondition {
				return result, err
			}
			if result.Failures == nil {
				result.Failures = map[string]error{}
			}
			result.Failures[step.InstallerKey] = err
			continue
		}
		result.Commands = append(result.Commands, commands...)
		if req.DryRun {
			continue
		}
		for _, argv := range commands {
			log.Ctx(ctx).Info().Str("installer", step.InstallerKey).Strs("argv", argv).Msg("removing")
			if err := s.Runner.Run(ctx, argv); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// Check reports the plan items that are not installed.
func (s Service) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	ic, err := s.installerContext(ctx, req.Target)
	if err != nil {
		return CheckResult{}, err
	}
	plan, failures, err := s.resolvePlan(ctx, ic, req.ResolveRequest)
	if err != nil {
		return CheckResult{}, err
	}
	result := CheckResult{Failures: failures}
	for _, step := range plan.Steps {
		installer, err := ic.Installer(step.InstallerKey)
		if err != nil {
			return result, err
		}
		missing, err := installer.PackagesToInstall(ctx, step.Packages, false)
		if err != nil {
			return result, err
		}
		if len(missing) > 0 {
			result.Missing = append(result.Missing, types.InstallStep{InstallerKey: step.InstallerKey, Packages: missing})
		}
	}
	log.Ctx(ctx).Debug().Int("missing_steps", len(result.Missing)).Msg("check completed")
	return result, nil
}
