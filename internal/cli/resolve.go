package cli

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ijt/xylem/internal/app"
)

type resolveOptions struct {
	Keys     []string
	View     string
	All      bool
	Implicit bool
	PlanOut  string
}

func addResolveFlags(cmd *cobra.Command, opts *resolveOptions) {
	cmd.Flags().StringSliceVar(&opts.Keys, "key", nil, "Dependency key(s) to resolve directly")
	cmd.Flags().StringVar(&opts.View, "view", "", "View keys are resolved in (default: every source)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Resolve every resource in the sources manifest")
	cmd.Flags().BoolVar(&opts.Implicit, "implicit", false, "Include keys of resources the named resources depend on")
	_ = viper.BindPFlag("keys", cmd.Flags().Lookup("key"))
	_ = viper.BindPFlag("view", cmd.Flags().Lookup("view"))
	_ = viper.BindPFlag("all", cmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("implicit", cmd.Flags().Lookup("implicit"))
}

func (o *resolveOptions) request(cmd *cobra.Command, target *targetOptions, resources []string) app.ResolveRequest {
	return app.ResolveRequest{
		Target:    target.resolve(cmd),
		Resources: resources,
		Keys:      resolveStrings(cmd, o.Keys, "keys", "key"),
		View:      resolveString(cmd, o.View, "view", "view"),
		All:       resolveBool(cmd, o.All, "all", "all"),
		Implicit:  resolveBool(cmd, o.Implicit, "implicit", "implicit"),
		PlanOut:   resolveString(cmd, o.PlanOut, "plan_out", "plan-out"),
	}
}

func newResolveCommand(target *targetOptions) *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [resource...]",
		Short: "Resolve resources or keys into an ordered install plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), cmd, target, opts, args)
		},
	}
	addResolveFlags(cmd, &opts)
	cmd.Flags().StringVar(&opts.PlanOut, "plan-out", "", "Write the plan to this file instead of stdout")
	_ = viper.BindPFlag("plan_out", cmd.Flags().Lookup("plan-out"))
	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, target *targetOptions, opts resolveOptions, resources []string) error {
	service := newAppService()
	req := opts.request(cmd, target, resources)
	result, err := service.Resolve(ctx, req)
	if err != nil {
		return err
	}
	if req.PlanOut == "" {
		if err := printPlan(cmd.OutOrStdout(), result.Plan); err != nil {
			return err
		}
	}
	log.Ctx(ctx).Debug().Int("steps", len(result.Plan.Steps)).Msg("resolve finished")
	return reportFailures(cmd.ErrOrStderr(), result.Failures)
}
