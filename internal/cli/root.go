package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ijt/xylem/internal/app"
	"github.com/ijt/xylem/internal/core"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "XYLEM"

var newAppService = app.NewService

type RootConfig struct {
	ConfigFile string
	LogLevel   string
}

// targetOptions are shared by every command that resolves rules.
type targetOptions struct {
	Sources   string
	Platforms string
	OS        string
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errorMessage(err))
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	target := &targetOptions{}
	cmd := &cobra.Command{
		Use:           "xylem",
		Short:         "Resolve and install system dependencies from rule sources",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	cmd.PersistentFlags().StringVar(&target.Sources, "sources", "", "Sources manifest path")
	cmd.PersistentFlags().StringVar(&target.Platforms, "platforms", "", "Platform config path (default: built-in)")
	cmd.PersistentFlags().StringVar(&target.OS, "os", "", "Override OS detection, as NAME:VERSION")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("sources", cmd.PersistentFlags().Lookup("sources"))
	_ = viper.BindPFlag("platforms", cmd.PersistentFlags().Lookup("platforms"))
	_ = viper.BindPFlag("os", cmd.PersistentFlags().Lookup("os"))

	cmd.AddCommand(newResolveCommand(target))
	cmd.AddCommand(newInstallCommand(target))
	cmd.AddCommand(newRemoveCommand(target))
	cmd.AddCommand(newCheckCommand(target))
	cmd.AddCommand(newWhereDefinedCommand(target))
	cmd.AddCommand(newKeysCommand(target))
	cmd.AddCommand(newWhatNeedsCommand(target))
	cmd.AddCommand(newPlatformsCommand(target))
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("xylem")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/xylem")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

// setupLogging writes logs to stderr so plans and command listings on
// stdout stay machine readable.  Loggers taken from a context without one
// fall back to the global logger.
func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.DefaultContextLogger = &log.Logger
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// unresolvedError reports that some resources or keys had no usable rule.
// The failures themselves have already been printed.
type unresolvedError struct {
	count int
}

func (e *unresolvedError) Error() string {
	return fmt.Sprintf("%d resources or keys could not be resolved", e.count)
}

func exitCodeForError(err error) int {
	var unresolved *unresolvedError
	switch {
	case errors.As(err, &unresolved), core.IsResolutionError(err):
		return 3
	case core.IsCycle(err):
		return 4
	case core.IsInternal(err):
		return 5
	}
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodeNotFound, errbuilder.CodeInternal:
		return 5
	}
	if core.IsInvalidData(err) {
		return 2
	}
	return 1
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
