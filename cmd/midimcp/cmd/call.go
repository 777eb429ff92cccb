package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leandrodaf/midimcp/internal/mcpserver"
	"github.com/spf13/cobra"
)

func callCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call tool [json-arguments]",
		Short: "Invoke one tool in-process and print its result",
		Long: `Invokes a tool through an in-memory MCP session, e.g.

  midimcp call open_midi_port '{"port_index": 0}'

  midimcp call --port 0 send_midi_sequence '{"bpm": 120, "notes": [60, 62, 64]}'

Each invocation starts a fresh session; --port opens a port before the
tool runs. Scheduled notes are played before the command exits.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			toolArgs := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
					return fmt.Errorf("parsing tool arguments: %w", err)
				}
			}

			a := newApp(cfg)
			defer a.close()

			if port, _ := cmd.Flags().GetInt("port"); port >= 0 {
				opened, err := a.server.CallTool(cmd.Context(), mcpserver.ToolOpenPort, map[string]any{"port_index": port})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), opened)
			}

			text, err := a.server.CallTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)

			drain, _ := cmd.Flags().GetDuration("drain-timeout")
			ctx, cancel := context.WithTimeout(cmd.Context(), drain)
			defer cancel()
			return a.session.Wait(ctx)
		},
	}

	cmd.Flags().Int("port", -1, "Open this port index before calling the tool")
	cmd.Flags().Duration("drain-timeout", time.Minute, "Maximum time to wait for scheduled notes")
	return cmd
}
