package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midimcp/internal/midi/mididarwin"
	"github.com/leandrodaf/midimcp/internal/midi/midimem"
	"github.com/leandrodaf/midimcp/internal/midi/midiportmidi"
	"github.com/leandrodaf/midimcp/internal/midi/midirtmidi"
	"github.com/leandrodaf/midimcp/internal/midi/midiwindows"
	"github.com/leandrodaf/midimcp/sdk/contracts"
)

// ErrUnsupportedOS is returned when no backend is known for the operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// ErrUnknownDriver is returned for a driver name that is not registered.
var ErrUnknownDriver = errors.New("unknown MIDI driver")

type initializer func(*contracts.ClientOptions) (contracts.OutputClient, error)

// driverInitializers maps driver names to backend initializers.
var driverInitializers = map[string]initializer{
	contracts.DriverRtMidi:   midirtmidi.NewMIDIClient,   // ALSA/JACK, CoreMIDI or winmm through RtMidi.
	contracts.DriverCoreMIDI: mididarwin.NewMIDIClient,   // macOS (Darwin) native client.
	contracts.DriverWinMM:    midiwindows.NewMIDIClient,  // Windows native client.
	contracts.DriverPortMidi: midiportmidi.NewMIDIClient, // PortMidi.
	contracts.DriverMemory:   midimem.NewMIDIClient,      // In-memory recorder.
}

// osDrivers maps OS names to the driver picked by DriverAuto.
var osDrivers = map[string]string{
	"darwin":  contracts.DriverCoreMIDI,
	"windows": contracts.DriverWinMM,
	"linux":   contracts.DriverRtMidi,
	"freebsd": contracts.DriverRtMidi,
}

// Drivers returns the registered driver names.
func Drivers() []string {
	names := make([]string, 0, len(driverInitializers))
	for name := range driverInitializers {
		names = append(names, name)
	}
	return names
}

// NewClient initializes a MIDI output client for opts.Driver, resolving
// DriverAuto from the current operating system.
//
// opts *contracts.ClientOptions: Configuration options for the MIDI client.
//
// Returns:
//   - contracts.OutputClient: An instance of the MIDI output client.
//   - error: An error if the driver or operating system is unsupported or if initialization fails.
func NewClient(opts *contracts.ClientOptions) (contracts.OutputClient, error) {
	name, err := resolveDriver(opts.Driver, runtime.GOOS)
	if err != nil {
		return nil, err
	}

	client, err := driverInitializers[name](opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return client, nil
}

func resolveDriver(name, goos string) (string, error) {
	if name == "" || name == contracts.DriverAuto {
		driver, exists := osDrivers[goos]
		if !exists {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
		}
		return driver, nil
	}
	if _, exists := driverInitializers[name]; !exists {
		return "", fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}
	return name, nil
}
