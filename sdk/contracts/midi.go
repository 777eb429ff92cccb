package contracts

import (
	"errors"
	"fmt"
)

// Errors shared by every output backend.
var (
	ErrNoMIDIPorts            = errors.New("no MIDI output ports found")
	ErrInvalidPort            = errors.New("invalid MIDI output port")
	ErrPortNotOpen            = errors.New("MIDI output port is not open")
	ErrVirtualPortUnsupported = errors.New("virtual MIDI ports are not supported by this driver")
	ErrInvalidMessage         = errors.New("invalid MIDI message")
)

// Velocities used when playing notes.
const (
	DefaultVelocity byte = 100
	ReleaseVelocity byte = 0
)

// Message is a raw three byte channel voice message: status, data1, data2.
type Message [3]byte

// NoteOn builds a Note On message for the given zero-based channel.
func NoteOn(channel, note, velocity byte) Message {
	return Message{byte(NoteOnCommand) | channel&0x0F, note, velocity}
}

// NoteOff builds a release as a velocity 0 Note On, which receivers treat
// the same as a Note Off (0x80) and keeps running status intact.
func NoteOff(channel, note byte) Message {
	return Message{byte(NoteOnCommand) | channel&0x0F, note, ReleaseVelocity}
}

// ControlChange builds a Control Change message for the given zero-based channel.
func ControlChange(channel, controller, value byte) Message {
	return Message{byte(ControlChangeCommand) | channel&0x0F, controller, value}
}

// Command returns the message type, i.e. the status byte without its channel.
func (m Message) Command() MIDICommand { return MIDICommand(m[0] & 0xF0) }

// Channel returns the zero-based channel encoded in the status byte.
func (m Message) Channel() byte { return m[0] & 0x0F }

// Bytes returns the message as a slice, ready for drivers that take []byte.
func (m Message) Bytes() []byte { return []byte{m[0], m[1], m[2]} }

// Validate checks that the status byte has its high bit set and that both
// data bytes are in [0,127].
func (m Message) Validate() error {
	if m[0]&0x80 == 0 {
		return fmt.Errorf("%w: status byte 0x%02X", ErrInvalidMessage, m[0])
	}
	if m[1] > 127 || m[2] > 127 {
		return fmt.Errorf("%w: data bytes %d, %d out of range", ErrInvalidMessage, m[1], m[2])
	}
	return nil
}

func (m Message) String() string {
	return fmt.Sprintf("[0x%02X %d %d]", m[0], m[1], m[2])
}

// OutputClient defines the operations a MIDI output backend provides.
// At most one port is open at a time.
type OutputClient interface {
	ListPorts() ([]PortInfo, error)    // Lists the output ports visible to the driver.
	OpenPort(index int) error          // Opens the port at index, as returned by ListPorts.
	OpenVirtualPort(name string) error // Creates and opens a virtual output port.
	ClosePort() error                  // Closes the open port; no-op when none is open.
	Send(msg Message) error            // Writes one message to the open port.
	Stop() error                       // Closes any open port and releases the driver.
}
