package main

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tmoody1973/tribe-ai/config"
	"github.com/tmoody1973/tribe-ai/toolset"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai/cmd", "tribetools")

type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "tribetools",
		Short:         "TRIBE migration tools",
		Long:          `Runs the housing, live search, visa and user context tools used by the TRIBE agent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.setup(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Configuration file, JSON or YAML")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Environment file loaded before the tools start")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warning", "Log level: debug, info, notice, warning or error")

	cmd.AddCommand(
		newListCmd(flags),
		newCallCmd(flags),
		newMCPCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// setup loads the environment file and routes logs to w.
// Stdout is reserved for tool output and the MCP transport.
func (f *globalFlags) setup(w io.Writer) error {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.WithMessagef(err, "failed to load %s", f.envFile)
		}
	}

	xlog.SetFormatter(xlog.NewStringFormatter(w))
	switch strings.ToLower(f.logLevel) {
	case "debug":
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	case "info":
		xlog.SetGlobalLogLevel(xlog.INFO)
	case "notice":
		xlog.SetGlobalLogLevel(xlog.NOTICE)
	case "warning":
		xlog.SetGlobalLogLevel(xlog.WARNING)
	case "error":
		xlog.SetGlobalLogLevel(xlog.ERROR)
	default:
		return errors.Newf("unknown log level: %s", f.logLevel)
	}
	return nil
}

func (f *globalFlags) toolset() (*toolset.Toolset, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	set, err := toolset.FromConfig(cfg, toolset.Options{})
	if err != nil {
		return nil, err
	}
	logger.KV(xlog.DEBUG, "config", f.configFile, "tools", set.Names())
	return set, nil
}
