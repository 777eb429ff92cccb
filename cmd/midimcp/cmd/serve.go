package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leandrodaf/midimcp/internal/config"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MIDI tools over MCP",
		Long:  `Serves open_midi_port, list_midi_ports, send_midi_note, send_midi_cc and send_midi_sequence over stdio (default) or streamable HTTP.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
				cfg.Server.Transport = transport
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a := newApp(cfg)
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}

	cmd.Flags().String("transport", "", "Transport: stdio or http")
	cmd.Flags().String("addr", "", "Listen address for the http transport")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	a.log.Info("Starting MIDI MCP server",
		a.log.Field().String("transport", a.cfg.Server.Transport),
		a.log.Field().String("driver", a.cfg.MIDI.Driver))

	var err error
	switch a.cfg.Server.Transport {
	case config.TransportHTTP:
		err = a.server.ServeHTTP(ctx, a.cfg.Server.Addr)
	default:
		err = a.server.ServeStdio(ctx)
	}
	if ctx.Err() != nil {
		a.log.Info("Interrupted; shutting down")
		return nil
	}
	return err
}
