package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the MIDI output ports the server would expose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a := newApp(cfg)
			defer a.close()

			fmt.Fprintln(cmd.OutOrStdout(), a.session.ListPorts())
			return nil
		},
	}
}
