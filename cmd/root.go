// Package cmd implements the alertengine command line.
package cmd

import (
	"fmt"
	"io"

	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "alertengine"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
}

// load reads the settings and builds the logger. A --log-level flag wins
// over the configured level.
func (g *globalFlags) load(stderr io.Writer) (*conf.Settings, logger.Logger, error) {
	settings, err := conf.Load(g.configFile)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		settings.Log.Level = g.logLevel
	}
	return settings, newLogger(settings.Log, stderr, settings.Main.TimeZone), nil
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return RootCommand().Execute()
}

// RootCommand builds the command tree.
func RootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Rule based alerting for program monitoring",
		Long: `alertengine evaluates a catalog of alert rules against program,
activity and participant data and keeps the resulting alerts with their
lifecycle state. It can run as a service with a scheduler and an HTTP API,
or perform one-off evaluations from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		serveCommand(flags),
		evaluateCommand(flags),
		rulesCommand(flags),
		versionCommand(),
	)
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
