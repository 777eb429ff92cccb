package contracts

import "fmt"

// PortInfo contains information about a MIDI output port.
type PortInfo struct {
	Index        int    // Position in the driver's port list.
	Name         string // Port name as reported by the driver.
	Manufacturer string // Port manufacturer, when the driver knows it.
	Virtual      bool   // True for ports created by this process.
}

func (p PortInfo) String() string {
	return fmt.Sprintf("%d: %s", p.Index, p.Name)
}
