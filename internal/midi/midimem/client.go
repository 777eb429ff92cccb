// Package midimem is an in-memory output backend. It records every message
// instead of writing to hardware, which makes it the driver behind
// "memory" dry runs and the binding double in tests.
package midimem

import (
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midimcp/sdk/contracts"
	"k8s.io/utils/clock"
)

// Record is one recorded message.
type Record struct {
	Port    string            // Name of the port the message went to.
	Message contracts.Message // Bytes written.
	At      time.Time         // Clock time of the write.
}

// ClientMem records MIDI output in memory.
type ClientMem struct {
	logger contracts.Logger
	clock  clock.PassiveClock
	ports  []string

	mu       sync.Mutex
	open     bool
	openName string
	sent     []Record
	calls    []string
	stopped  bool

	// Failure injection, checked on every call.
	OpenErr    error
	VirtualErr error
	SendErr    error
	ListErr    error
}

// NewMIDIClient creates a memory client exposing options.MemoryPorts.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	options.Logger.Info("Using in-memory MIDI output client",
		options.Logger.Field().Int("ports", len(options.MemoryPorts)))
	return New(options.Logger, clock.RealClock{}, options.MemoryPorts...), nil
}

// New creates a memory client with an explicit clock.
func New(logger contracts.Logger, clk clock.PassiveClock, ports ...string) *ClientMem {
	return &ClientMem{
		logger: logger,
		clock:  clk,
		ports:  append([]string(nil), ports...),
	}
}

// ListPorts returns the configured port names.
func (m *ClientMem) ListPorts() ([]contracts.PortInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list")

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	infos := make([]contracts.PortInfo, len(m.ports))
	for i, name := range m.ports {
		infos[i] = contracts.PortInfo{Index: i, Name: name, Manufacturer: "midimem"}
	}
	return infos, nil
}

// OpenPort opens a configured port by index.
func (m *ClientMem) OpenPort(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("open:%d", index))

	if index < 0 || index >= len(m.ports) {
		return fmt.Errorf("%w: %d", contracts.ErrInvalidPort, index)
	}
	if m.open {
		return fmt.Errorf("port %q still open", m.openName)
	}
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.open = true
	m.openName = m.ports[index]
	return nil
}

// OpenVirtualPort pretends to create a virtual port with the given name.
func (m *ClientMem) OpenVirtualPort(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "virtual:"+name)

	if m.VirtualErr != nil {
		return m.VirtualErr
	}
	if m.open {
		return fmt.Errorf("port %q still open", m.openName)
	}
	m.open = true
	m.openName = name
	return nil
}

// ClosePort closes the open port, if any.
func (m *ClientMem) ClosePort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "close")

	m.open = false
	m.openName = ""
	return nil
}

// Send records msg against the open port.
func (m *ClientMem) Send(msg contracts.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return contracts.ErrPortNotOpen
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, Record{Port: m.openName, Message: msg, At: m.clock.Now()})
	m.logger.Debug("MIDI message recorded",
		m.logger.Field().String("port", m.openName),
		m.logger.Field().String("message", msg.String()))
	return nil
}

// Stop closes the port and marks the client stopped.
func (m *ClientMem) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop")

	m.open = false
	m.openName = ""
	m.stopped = true
	return nil
}

// Records returns a copy of every recorded message.
func (m *ClientMem) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.sent...)
}

// Messages returns only the recorded bytes.
func (m *ClientMem) Messages() []contracts.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]contracts.Message, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Message
	}
	return out
}

// Calls returns the driver operations seen so far, e.g. "open:1", "close".
func (m *ClientMem) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// IsOpen reports whether a port is open and its name.
func (m *ClientMem) IsOpen() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open, m.openName
}

// Stopped reports whether Stop was called.
func (m *ClientMem) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
