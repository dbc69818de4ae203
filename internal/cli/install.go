package cli

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ijt/xylem/internal/app"
)

type installOptions struct {
	resolveOptions
	PlanIn          string
	DryRun          bool
	Reinstall       bool
	Interactive     bool
	ContinueOnError bool
}

func newInstallCommand(target *targetOptions) *cobra.Command {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:   "install [resource...]",
		Short: "Install the dependencies of resources or keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), cmd, target, opts, args)
		},
	}
	addResolveFlags(cmd, &opts.resolveOptions)
	cmd.Flags().StringVar(&opts.PlanIn, "plan-in", "", "Install a plan written by resolve --plan-out")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print commands without running them")
	cmd.Flags().BoolVar(&opts.Reinstall, "reinstall", false, "Install even if already installed")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", false, "Let package managers prompt")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "Install what resolved even if some keys did not")
	_ = viper.BindPFlag("plan_in", cmd.Flags().Lookup("plan-in"))
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("reinstall", cmd.Flags().Lookup("reinstall"))
	_ = viper.BindPFlag("interactive", cmd.Flags().Lookup("interactive"))
	_ = viper.BindPFlag("continue_on_error", cmd.Flags().Lookup("continue-on-error"))
	return cmd
}

func runInstall(ctx context.Context, cmd *cobra.Command, target *targetOptions, opts installOptions, resources []string) error {
	service := newAppService()
	req := app.InstallRequest{
		ResolveRequest:  opts.request(cmd, target, resources),
		PlanIn:          resolveString(cmd, opts.PlanIn, "plan_in", "plan-in"),
		DryRun:          resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
		Reinstall:       resolveBool(cmd, opts.Reinstall, "reinstall", "reinstall"),
		Interactive:     resolveBool(cmd, opts.Interactive, "interactive", "interactive"),
		ContinueOnError: resolveBool(cmd, opts.ContinueOnError, "continue_on_error", "continue-on-error"),
	}
	result, err := service.Install(ctx, req)
	if req.DryRun {
		printCommands(cmd.OutOrStdout(), result.Commands)
	}
	if err != nil {
		return err
	}
	if len(result.Commands) == 0 && len(result.Failures) == 0 {
		log.Ctx(ctx).Info().Msg("all required rules are installed")
	}
	return reportFailures(cmd.ErrOrStderr(), result.Failures)
}

type removeOptions struct {
	resolveOptions
	PlanIn      string
	DryRun      bool
	Interactive bool
}

func newRemoveCommand(target *targetOptions) *cobra.Command {
	opts := removeOptions{}
	cmd := &cobra.Command{
		Use:   "remove [resource...]",
		Short: "Remove the installed dependencies of resources or keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), cmd, target, opts, args)
		},
	}
	addResolveFlags(cmd, &opts.resolveOptions)
	cmd.Flags().StringVar(&opts.PlanIn, "plan-in", "", "Remove the packages of a plan written by resolve --plan-out")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print commands without running them")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", false, "Let package managers prompt")
	_ = viper.BindPFlag("plan_in", cmd.Flags().Lookup("plan-in"))
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("interactive", cmd.Flags().Lookup("interactive"))
	return cmd
}

func runRemove(ctx context.Context, cmd *cobra.Command, target *targetOptions, opts removeOptions, resources []string) error {
	service := newAppService()
	req := app.RemoveRequest{
		ResolveRequest: opts.request(cmd, target, resources),
		PlanIn:         resolveString(cmd, opts.PlanIn, "plan_in", "plan-in"),
		DryRun:         resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
		Interactive:    resolveBool(cmd, opts.Interactive, "interactive", "interactive"),
	}
	result, err := service.Remove(ctx, req)
	if req.DryRun {
		printCommands(cmd.OutOrStdout(), result.Commands)
	}
	if err != nil {
		return err
	}
	return reportFailures(cmd.ErrOrStderr(), result.Failures)
}

func newCheckCommand(target *targetOptions) *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "check [resource...]",
		Short: "Report dependencies that are not installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd, target, opts, args)
		},
	}
	addResolveFlags(cmd, &opts)
	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, target *targetOptions, opts resolveOptions, resources []string) error {
	service := newAppService()
	result, err := service.Check(ctx, app.CheckRequest{ResolveRequest: opts.request(cmd, target, resources)})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, step := range result.Missing {
		for _, item := range step.Packages {
			fmt.Fprintf(out, "%s\t%s\n", step.InstallerKey, item)
		}
	}
	if err := reportFailures(cmd.ErrOrStderr(), result.Failures); err != nil {
		return err
	}
	if len(result.Missing) > 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("some required rules are not installed")
	}
	fmt.Fprintln(out, "All required rules are installed")
	return nil
}
