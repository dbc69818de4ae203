package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ijt/xylem/internal/app"
)

func newWhereDefinedCommand(target *targetOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "where-defined KEY",
		Short: "List the sources that define a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhereDefined(cmd.Context(), cmd, target, args[0])
		},
	}
}

func runWhereDefined(ctx context.Context, cmd *cobra.Command, target *targetOptions, key string) error {
	service := newAppService()
	result, err := service.WhereDefined(ctx, app.WhereDefinedRequest{
		SourcesPath: target.resolve(cmd).SourcesPath,
		Key:         key,
	})
	if err != nil {
		return err
	}
	for _, loadErr := range result.Errors {
		log.Ctx(ctx).Warn().Err(loadErr).Msg("source skipped")
	}
	for _, site := range result.Sites {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", site.View, site.Origin)
	}
	return nil
}

type keysOptions struct {
	Implicit bool
}

func newKeysCommand(target *targetOptions) *cobra.Command {
	opts := keysOptions{}
	cmd := &cobra.Command{
		Use:   "keys RESOURCE...",
		Short: "List the dependency keys of resources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newAppService()
			result, err := service.Keys(cmd.Context(), app.KeysRequest{
				SourcesPath: target.resolve(cmd).SourcesPath,
				Resources:   args,
				Implicit:    resolveBool(cmd, opts.Implicit, "implicit", "implicit"),
			})
			if err != nil {
				return err
			}
			for _, key := range result.Keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Implicit, "implicit", false, "Include keys of resources they depend on")
	_ = viper.BindPFlag("implicit", cmd.Flags().Lookup("implicit"))
	return cmd
}

func newWhatNeedsCommand(target *targetOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "what-needs KEY",
		Short: "List the resources that need a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service := newAppService()
			result, err := service.WhatNeeds(ctx, app.WhatNeedsRequest{
				SourcesPath: target.resolve(cmd).SourcesPath,
				Key:         args[0],
			})
			if err != nil {
				return err
			}
			for _, loadErr := range result.Errors {
				log.Ctx(ctx).Warn().Err(loadErr).Msg("resource skipped")
			}
			for _, resource := range result.Resources {
				fmt.Fprintln(cmd.OutOrStdout(), resource)
			}
			return nil
		},
	}
}

func newPlatformsCommand(target *targetOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "Show the installers available on each OS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService()
			result, err := service.Platforms(cmd.Context(), app.PlatformsRequest{
				PlatformsPath: target.resolve(cmd).PlatformsPath,
			})
			if err != nil {
				return err
			}
			table := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(table, "OS\tVERSION\tDEFAULT\tINSTALLERS")
			for _, platform := range result.Platforms {
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\n",
					platform.OS, platform.VersionType, platform.Default, strings.Join(platform.Installers, ","))
			}
			return table.Flush()
		},
	}
}
