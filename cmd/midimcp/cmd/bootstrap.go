package cmd

import (
	"github.com/leandrodaf/midimcp/internal/config"
	"github.com/leandrodaf/midimcp/internal/logger"
	"github.com/leandrodaf/midimcp/internal/mcpserver"
	"github.com/leandrodaf/midimcp/internal/metrics"
	"github.com/leandrodaf/midimcp/internal/session"
	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/leandrodaf/midimcp/sdk/midi"
	"github.com/spf13/cobra"
)

// app holds everything a command needs once flags and config are merged.
type app struct {
	cfg     *config.Config
	log     contracts.Logger
	client  contracts.OutputClient // nil when MIDI is unavailable.
	metrics *metrics.Metrics
	session *session.Session
	server  *mcpserver.Server
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(configFlag)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if driver, _ := cmd.Flags().GetString(driverFlag); driver != "" {
		cfg.MIDI.Driver = driver
	}
	if level, _ := cmd.Flags().GetString(logLevelFlag); level != "" {
		cfg.Log.Level = level
	}
	return cfg, cfg.Validate()
}

// newApp builds the logger, driver, session and MCP server. A driver that
// fails to start is logged and leaves the session in advisory-only mode.
func newApp(cfg *config.Config) *app {
	log := logger.NewZapLogger()
	level := contracts.ParseLogLevel(cfg.Log.Level)
	log.SetLevel(level)
	if cfg.Log.File != "" {
		log.SetDestination(contracts.FileLog, cfg.Log.File)
	}

	client, err := midi.NewOutputClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
		contracts.WithDriver(cfg.MIDI.Driver),
		contracts.WithCoreMIDIConfig(contracts.CoreMIDIConfig{ClientName: cfg.MIDI.ClientName}),
		contracts.WithMemoryPorts(cfg.MIDI.MemoryPorts...),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI; MIDI tools are unavailable", log.Field().Error("error", err))
		log.Warn("Install the MIDI driver for your platform (ALSA on Linux) or set midi.driver, e.g. --driver memory")
		client = nil
	}

	m := metrics.New()
	sess := session.New(client, session.Options{
		Logger:          log,
		Metrics:         m,
		VirtualPortName: cfg.MIDI.VirtualPortName,
		NoteDuration:    cfg.MIDI.NoteDuration,
		Velocity:        byte(cfg.MIDI.Velocity),
	})

	return &app{
		cfg:     cfg,
		log:     log,
		client:  client,
		metrics: m,
		session: sess,
		server: mcpserver.New(sess, mcpserver.Options{
			Name:    cfg.Server.Name,
			Version: cfg.Server.Version,
			Logger:  log,
			Metrics: m,
		}),
	}
}

// close releases the port and flushes logs.
func (a *app) close() {
	if err := a.session.Close(); err != nil {
		a.log.Error("Failed to close MIDI session", a.log.Field().Error("error", err))
	}
	if syncer, ok := a.log.(interface{ Sync() error }); ok {
		_ = syncer.Sync()
	}
}
