//go:build cgo
// +build cgo

package midirtmidi

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midimcp/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ClientMid writes MIDI through RtMidi (ALSA on Linux, CoreMIDI on macOS,
// winmm on Windows). It is the only backend besides CoreMIDI that can
// create virtual ports.
type ClientMid struct {
	logger contracts.Logger
	driver *rtmididrv.Driver
	mu     sync.Mutex
	out    drivers.Out // Currently open port, nil when closed.
}

// NewMIDIClient initializes the RtMidi driver.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("error initializing rtmidi driver: %w", err)
	}
	options.Logger.Info("MIDI client successfully created",
		options.Logger.Field().String("driver", drv.String()))

	return &ClientMid{logger: options.Logger, driver: drv}, nil
}

// ListPorts enumerates the RtMidi output ports.
func (m *ClientMid) ListPorts() ([]contracts.PortInfo, error) {
	outs, err := m.driver.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}

	ports := make([]contracts.PortInfo, len(outs))
	for i, out := range outs {
		ports[i] = contracts.PortInfo{Index: i, Name: out.String()}
	}
	return ports, nil
}

// OpenPort opens the output at index. A port that is already open must be
// closed first.
func (m *ClientMid) OpenPort(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	outs, err := m.driver.Outs()
	if err != nil {
		return fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	if index < 0 || index >= len(outs) {
		m.logger.Error(contracts.ErrInvalidPort.Error(), m.logger.Field().Int("index", index))
		return fmt.Errorf("%w: %d", contracts.ErrInvalidPort, index)
	}

	out := outs[index]
	if err := out.Open(); err != nil {
		return fmt.Errorf("error opening MIDI output %q: %w", out.String(), err)
	}
	m.out = out
	m.logger.Info("MIDI output opened",
		m.logger.Field().Int("index", index),
		m.logger.Field().String("name", out.String()))
	return nil
}

// OpenVirtualPort creates a virtual output other applications can read from.
func (m *ClientMid) OpenVirtualPort(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.driver.OpenVirtualOut(name)
	if err != nil {
		return fmt.Errorf("failed to create virtual MIDI output port '%s': %w", name, err)
	}
	m.out = out
	m.logger.Info("Virtual MIDI output created", m.logger.Field().String("name", name))
	return nil
}

// ClosePort closes the open output, if any.
func (m *ClientMid) ClosePort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *ClientMid) closeLocked() error {
	if m.out == nil {
		return nil
	}
	name := m.out.String()
	err := m.out.Close()
	m.out = nil
	if err != nil {
		return fmt.Errorf("error closing MIDI output %q: %w", name, err)
	}
	m.logger.Info("MIDI output closed", m.logger.Field().String("name", name))
	return nil
}

// Send writes msg to the open output.
func (m *ClientMid) Send(msg contracts.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.out == nil {
		return contracts.ErrPortNotOpen
	}
	return m.out.Send(msg.Bytes())
}

// Stop closes the output and the RtMidi driver.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeLocked(); err != nil {
		m.logger.Warn("Failed to close MIDI output", m.logger.Field().Error("error", err))
	}
	return m.driver.Close()
}
