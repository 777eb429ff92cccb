//go:build !darwin
// +build !darwin

package mididarwin

import (
	"errors"

	"github.com/leandrodaf/midimcp/sdk/contracts"
)

// ErrUnavailable is returned by NewMIDIClient outside macOS.
var ErrUnavailable = errors.New("CoreMIDI is only available on macOS")

func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	options.Logger.Warn("CoreMIDI client requested on a non-macOS system")
	return nil, ErrUnavailable
}
