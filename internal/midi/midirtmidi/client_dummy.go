//go:build !cgo
// +build !cgo

package midirtmidi

import (
	"errors"

	"github.com/leandrodaf/midimcp/sdk/contracts"
)

// ErrCgoRequired is returned when the binary was built without cgo, which
// RtMidi needs.
var ErrCgoRequired = errors.New("rtmidi driver requires a cgo build")

// NewMIDIClient fails on builds without cgo so the session degrades to
// advisory mode.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.OutputClient, error) {
	options.Logger.Warn("RtMidi is not available in this build")
	return nil, ErrCgoRequired
}
