//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for CoreMIDI output handling.
var (
	ErrCreateOutputPort    = errors.New("error creating output port")
	ErrCreateVirtualPort   = errors.New("error creating virtual source")
	ErrListingDestinations = errors.New("error listing MIDI destinations")
)

// ClientMid manages MIDI output on Darwin (macOS) systems.
// Regular ports are CoreMIDI destinations written through one output port;
// a virtual port is a CoreMIDI source owned by this client.
type ClientMid struct {
	logger         contracts.Logger
	client         coremidi.Client           // CoreMIDI client instance for MIDI operations.
	outputPort     coremidi.OutputPort       // Output port used to reach destinations.
	coreMIDIConfig *contracts.CoreMIDIConfig // Configuration for MIDI client.
	mu             sync.Mutex                // Guards the fields below.
	destination    *coremidi.Destination     // Open destination, nil when closed.
	virtual        *coremidi.Source          // Open virtual source, nil when closed.
}

// NewMIDIClient initializes a new ClientMid for MIDI output on macOS.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}

	outputPort, err := coremidi.NewOutputPort(client, "Output Port")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	options.Logger.Info("MIDI client successfully created")

	return &ClientMid{
		logger:         options.Logger,
		client:         client,
		outputPort:     outputPort,
		coreMIDIConfig: options.CoreMIDIConfig,
	}, nil
}

// ListPorts retrieves the available CoreMIDI destinations.
func (m *ClientMid) ListPorts() ([]contracts.PortInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListingDestinations, err)
	}

	ports := make([]contracts.PortInfo, len(destinations))
	for i, destination := range destinations {
		entity := destination.Entity()
		ports[i] = contracts.PortInfo{
			Index:        i,
			Name:         destination.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return ports, nil
}

// OpenPort selects the destination at index for output.
func (m *ClientMid) OpenPort(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListingDestinations, err)
	}
	if index < 0 || index >= len(destinations) {
		m.logger.Error(contracts.ErrInvalidPort.Error(), m.logger.Field().Int("index", index))
		return fmt.Errorf("%w: %d", contracts.ErrInvalidPort, index)
	}

	destination := destinations[index]
	m.destination = &destination
	m.virtual = nil
	m.logger.Info("MIDI destination selected",
		m.logger.Field().Int("index", index),
		m.logger.Field().String("name", destination.Name()))
	return nil
}

// OpenVirtualPort publishes a virtual source other applications can read.
func (m *ClientMid) OpenVirtualPort(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, err := coremidi.NewSource(m.client, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateVirtualPort, err)
	}
	m.virtual = &source
	m.destination = nil
	m.logger.Info("Virtual MIDI source created", m.logger.Field().String("name", name))
	return nil
}

// ClosePort forgets the open destination or virtual source.
func (m *ClientMid) ClosePort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destination = nil
	m.virtual = nil
	return nil
}

// Send delivers msg to the destination, or publishes it on the virtual source.
func (m *ClientMid) Send(msg contracts.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	packet := coremidi.NewPacket(msg.Bytes(), 0)
	switch {
	case m.destination != nil:
		return packet.Send(&m.outputPort, m.destination)
	case m.virtual != nil:
		return packet.Received(m.virtual)
	default:
		return contracts.ErrPortNotOpen
	}
}

// Stop closes the port. The CoreMIDI client lives until process exit.
func (m *ClientMid) Stop() error {
	m.logger.Info("Stopping MIDI output")
	return m.ClosePort()
}
