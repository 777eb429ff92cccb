//go:build cgo
// +build cgo

package midiportmidi

import (
	"fmt"
	"sync"

	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/rakyll/portmidi"
)

const (
	outputBufferSize = 1024
	outputLatency    = 0 // Milliseconds; 0 ignores timestamps and sends immediately.
)

// ClientMid writes MIDI through PortMidi. PortMidi numbers input and
// output devices together, so the client keeps a mapping from output
// index to device ID.
type ClientMid struct {
	logger contracts.Logger
	mu     sync.Mutex
	stream *portmidi.Stream
}

// NewMIDIClient initializes PortMidi.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, fmt.Errorf("error initializing portmidi: %w", err)
	}
	options.Logger.Info("MIDI client successfully created", options.Logger.Field().String("driver", "portmidi"))
	return &ClientMid{logger: options.Logger}, nil
}

func outputDevices() []portmidi.DeviceID {
	var ids []portmidi.DeviceID
	for i := 0; i < portmidi.CountDevices(); i++ {
		id := portmidi.DeviceID(i)
		if info := portmidi.Info(id); info != nil && info.IsOutputAvailable {
			ids = append(ids, id)
		}
	}
	return ids
}

// ListPorts enumerates PortMidi output devices.
func (m *ClientMid) ListPorts() ([]contracts.PortInfo, error) {
	ids := outputDevices()
	ports := make([]contracts.PortInfo, len(ids))
	for i, id := range ids {
		info := portmidi.Info(id)
		ports[i] = contracts.PortInfo{Index: i, Name: info.Name, Manufacturer: info.Interface}
	}
	return ports, nil
}

// OpenPort opens an output stream on the device at index.
func (m *ClientMid) OpenPort(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := outputDevices()
	if index < 0 || index >= len(ids) {
		return fmt.Errorf("%w: %d", contracts.ErrInvalidPort, index)
	}

	stream, err := portmidi.NewOutputStream(ids[index], outputBufferSize, outputLatency)
	if err != nil {
		return fmt.Errorf("error opening portmidi device %d: %w", ids[index], err)
	}
	m.stream = stream
	m.logger.Info("MIDI output opened",
		m.logger.Field().Int("index", index),
		m.logger.Field().String("name", portmidi.Info(ids[index]).Name))
	return nil
}

// OpenVirtualPort is not supported by PortMidi.
func (m *ClientMid) OpenVirtualPort(name string) error {
	m.logger.Warn("PortMidi cannot create virtual ports", m.logger.Field().String("name", name))
	return contracts.ErrVirtualPortUnsupported
}

// ClosePort closes the open stream, if any.
func (m *ClientMid) ClosePort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *ClientMid) closeLocked() error {
	if m.stream == nil {
		return nil
	}
	err := m.stream.Close()
	m.stream = nil
	return err
}

// Send writes msg as a short message.
func (m *ClientMid) Send(msg contracts.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return contracts.ErrPortNotOpen
	}
	return m.stream.WriteShort(int64(msg[0]), int64(msg[1]), int64(msg[2]))
}

// Stop closes the stream and terminates PortMidi.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeLocked(); err != nil {
		m.logger.Warn("Failed to close portmidi stream", m.logger.Field().Error("error", err))
	}
	return portmidi.Terminate()
}
