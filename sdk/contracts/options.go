package contracts

// MIDICommand represents the type nibble of a MIDI status byte.
type MIDICommand byte

const (
	// NoteOffCommand is the MIDI command for a Note Off event (0x80).
	NoteOffCommand MIDICommand = 0x80
	// NoteOnCommand is the MIDI command for a Note On event (0x90).
	NoteOnCommand MIDICommand = 0x90
	// ControlChangeCommand is the MIDI command for a Control Change event (0xB0).
	ControlChangeCommand MIDICommand = 0xB0
)

func (c MIDICommand) String() string {
	switch c {
	case NoteOffCommand:
		return "note_off"
	case NoteOnCommand:
		return "note_on"
	case ControlChangeCommand:
		return "control_change"
	default:
		return "other"
	}
}

// Driver names accepted by WithDriver.
const (
	DriverAuto     = "auto"
	DriverRtMidi   = "rtmidi"
	DriverCoreMIDI = "coremidi"
	DriverWinMM    = "winmm"
	DriverPortMidi = "portmidi"
	DriverMemory   = "memory"
)

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// ClientOptions defines the configuration options for the MIDI output client.
type ClientOptions struct {
	Logger         Logger          // Logger for logging events and errors.
	LogLevel       LogLevel        // Level of logging to use.
	LogFilePath    string          // File path for logging if file logging is enabled.
	Driver         string          // Backend name; DriverAuto picks one for the running OS.
	CoreMIDIConfig *CoreMIDIConfig // Configuration specific to CoreMIDI.
	MemoryPorts    []string        // Port names exposed by the memory driver.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the MIDI client.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the MIDI client.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends client logs to the given file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithDriver selects the output backend by name.
func WithDriver(name string) Option {
	return func(opts *ClientOptions) {
		opts.Driver = name
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the MIDI client.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}

// WithMemoryPorts sets the port names reported by the memory driver.
func WithMemoryPorts(names ...string) Option {
	return func(opts *ClientOptions) {
		opts.MemoryPorts = append([]string(nil), names...)
	}
}
