//go:build windows
// +build windows

package midiwindows

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/midimcp/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIOUT windows.Handle

// CALLBACK_NULL opens a device without completion notifications.
const CALLBACK_NULL = 0x00000000

// Struct representing MIDI output device capabilities (MIDIOUTCAPSW)
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// ClientMid manages MIDI output on Windows
type ClientMid struct {
	logger contracts.Logger
	handle HMIDIOUT
	mu     sync.Mutex
	name   string
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutReset      = winmm.NewProc("midiOutReset")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// NewMIDIClient creates a MIDI output client for Windows
func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	if err := winmm.Load(); err != nil {
		return nil, fmt.Errorf("error loading winmm.dll: %w", err)
	}
	options.Logger.Info("MIDI client created for Windows")

	return &ClientMid{logger: options.Logger}, nil
}

// ListPorts lists the available MIDI output devices
func (m *ClientMid) ListPorts() ([]contracts.PortInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)

	ports := make([]contracts.PortInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			// Keep the slot so list positions match device IDs.
			m.logger.Warn(fmt.Sprintf("Failed to get information for MIDI device %d", i))
			ports = append(ports, contracts.PortInfo{Index: int(i), Name: fmt.Sprintf("MIDI Out %d", i)})
			continue
		}
		ports = append(ports, contracts.PortInfo{
			Index:        int(i),
			Name:         windows.UTF16ToString(caps.szPname[:]),
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return ports, nil
}

// OpenPort opens a MIDI output device
func (m *ClientMid) OpenPort(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r0, _, _ := procMidiOutGetNumDevs.Call()
	if index < 0 || index >= int(uint32(r0)) {
		return fmt.Errorf("%w: %d", contracts.ErrInvalidPort, index)
	}

	var handle HMIDIOUT
	r1, _, err := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&handle)),
		uintptr(index),
		0,
		0,
		CALLBACK_NULL,
	)
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to open MIDI device %d: %v", index, err))
		return fmt.Errorf("failed to open MIDI device %d: %v", index, err)
	}

	m.handle = handle
	m.name = fmt.Sprintf("device %d", index)
	m.logger.Info(fmt.Sprintf("MIDI device %d connected", index))
	return nil
}

// OpenVirtualPort is not supported by winmm.
func (m *ClientMid) OpenVirtualPort(name string) error {
	m.logger.Warn("winmm cannot create virtual ports", m.logger.Field().String("name", name))
	return contracts.ErrVirtualPortUnsupported
}

// ClosePort resets and closes the open device
func (m *ClientMid) ClosePort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *ClientMid) closeLocked() error {
	if m.handle == 0 {
		return nil
	}

	procMidiOutReset.Call(uintptr(m.handle))
	r1, _, err := procMidiOutClose.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to close MIDI device: %v", err))
		return err
	}

	m.handle = 0
	m.logger.Info("MIDI device closed", m.logger.Field().String("name", m.name))
	return nil
}

// Send packs msg into a short message: status | data1<<8 | data2<<16
func (m *ClientMid) Send(msg contracts.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == 0 {
		return contracts.ErrPortNotOpen
	}

	packed := uint32(msg[0]) | uint32(msg[1])<<8 | uint32(msg[2])<<16
	r1, _, err := procMidiOutShortMsg.Call(uintptr(m.handle), uintptr(packed))
	if r1 != 0 {
		return fmt.Errorf("midiOutShortMsg failed (0x%X): %v", r1, err)
	}
	return nil
}

// Stop closes the device
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}
