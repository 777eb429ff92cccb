//go:build !cgo
// +build !cgo

package midiportmidi

import (
	"errors"

	"github.com/leandrodaf/midimcp/sdk/contracts"
)

// ErrCgoRequired is returned when the binary was built without cgo.
var ErrCgoRequired = errors.New("portmidi driver requires a cgo build")

func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	options.Logger.Warn("PortMidi is not available in this build")
	return nil, ErrCgoRequired
}
