//go:build !windows
// +build !windows

package midiwindows

import (
	"errors"

	"github.com/leandrodaf/midimcp/sdk/contracts"
)

// ErrUnavailable is returned by NewMIDIClient outside Windows.
var ErrUnavailable = errors.New("winmm is only available on Windows")

// NewMIDIClient reports that winmm output is unavailable on this platform.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	options.Logger.Warn("winmm client requested on a non-Windows system")
	return nil, ErrUnavailable
}
