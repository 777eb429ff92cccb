// Package config loads the server settings from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transports accepted by server.transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the full server configuration, as read from YAML.
type Config struct {
	Server ServerConfig `yaml:"server"`
	MIDI   MIDIConfig   `yaml:"midi"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig selects the MCP identity and transport.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
}

// MIDIConfig selects the driver and how notes are played.
type MIDIConfig struct {
	Driver          string        `yaml:"driver"`
	ClientName      string        `yaml:"client_name"`
	VirtualPortName string        `yaml:"virtual_port_name"`
	NoteDuration    time.Duration `yaml:"note_duration"`
	Velocity        int           `yaml:"velocity"`
	MemoryPorts     []string      `yaml:"memory_ports"`
}

// LogConfig sets the log level and an optional log file; stderr otherwise.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "midimcp",
			Version:   "v0.1.0",
			Transport: TransportStdio,
			Addr:      "127.0.0.1:8808",
		},
		MIDI: MIDIConfig{
			Driver:          "auto",
			ClientName:      "midimcp",
			VirtualPortName: "Virtual MIDI Port",
			NoteDuration:    500 * time.Millisecond,
			Velocity:        100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q", c.Server.Transport)
	}
	if c.Server.Transport == TransportHTTP && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required for the http transport")
	}
	if c.MIDI.Velocity < 1 || c.MIDI.Velocity > 127 {
		return fmt.Errorf("midi.velocity must be between 1 and 127, got %d", c.MIDI.Velocity)
	}
	if c.MIDI.NoteDuration <= 0 {
		return fmt.Errorf("midi.note_duration must be positive, got %s", c.MIDI.NoteDuration)
	}
	return nil
}
