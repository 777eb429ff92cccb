package cmd

import (
	"github.com/spf13/cobra"
)

const (
	configFlag   = "config"
	driverFlag   = "driver"
	logLevelFlag = "log-level"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "midimcp",
		Short:         "midimcp exposes a MIDI output port as MCP tools.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String(configFlag, "", "Path to a YAML config file")
	cmd.PersistentFlags().String(driverFlag, "", "MIDI driver: auto, rtmidi, coremidi, winmm, portmidi or memory")
	cmd.PersistentFlags().String(logLevelFlag, "", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		serveCmd(),
		portsCmd(),
		callCmd(),
	)

	return cmd
}
