// Package session owns the single MIDI output port shared by every tool
// call: which ports exist, which one is open, and how notes, control
// changes and sequences reach it.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/leandrodaf/midimcp/internal/logger"
	"github.com/leandrodaf/midimcp/internal/metrics"
	"github.com/leandrodaf/midimcp/internal/sequencer"
	"github.com/leandrodaf/midimcp/sdk/contracts"
	"k8s.io/utils/clock"
)

const (
	// DefaultVirtualPortName is used when no output port is visible at startup.
	DefaultVirtualPortName = "Virtual MIDI Port"
	// DefaultNoteDuration is how long send_midi_note holds a note.
	DefaultNoteDuration = 500 * time.Millisecond

	channel = 0 // MIDI channel 1.
	maxData = 127
)

// Options configures a Session. Zero values pick the defaults.
type Options struct {
	Logger          contracts.Logger
	Clock           clock.Clock
	Metrics         *metrics.Metrics
	VirtualPortName string
	NoteDuration    time.Duration
	Velocity        byte
}

// Status is a snapshot of the session state.
type Status struct {
	Available bool
	Open      bool
	Virtual   bool
	Selected  int // -1 when no listed port is selected.
	Ports     []string
}

// Session is the process-wide MIDI state. Its methods may be called from
// concurrent tool handlers; a mutex serializes state changes and port writes.
type Session struct {
	client    contracts.OutputClient // nil when the driver failed to initialize.
	logger    contracts.Logger
	scheduler *sequencer.Scheduler
	metrics   *metrics.Metrics

	noteDuration time.Duration
	velocity     byte

	ports []string // Discovered once in New, never modified afterwards.

	ctx    context.Context // Parent of every scheduled task.
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error

	mu       sync.Mutex
	open     bool
	virtual  bool
	selected int
}

// New discovers the output ports of client. A nil client puts the session
// in unavailable mode, where every operation returns an advisory and never
// touches a driver. When no port is visible a virtual port is created and
// opened right away.
func New(client contracts.OutputClient, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logger.NewZapLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.VirtualPortName == "" {
		opts.VirtualPortName = DefaultVirtualPortName
	}
	if opts.NoteDuration <= 0 {
		opts.NoteDuration = DefaultNoteDuration
	}
	if opts.Velocity == 0 || opts.Velocity > maxData {
		opts.Velocity = contracts.DefaultVelocity
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		client:       client,
		logger:       opts.Logger,
		scheduler:    sequencer.New(opts.Clock, opts.Logger),
		metrics:      opts.Metrics,
		noteDuration: opts.NoteDuration,
		velocity:     opts.Velocity,
		ctx:          ctx,
		cancel:       cancel,
		selected:     -1,
	}
	s.init(opts.VirtualPortName)
	return s
}

func (s *Session) init(virtualName string) {
	if s.client == nil {
		s.logger.Warn("MIDI is unavailable; tools will only return advisories")
		return
	}

	infos, err := s.client.ListPorts()
	if err != nil {
		s.logger.Error("Failed to list MIDI output ports; MIDI is unavailable",
			s.logger.Field().Error("error", err))
		if err := s.client.Stop(); err != nil {
			s.logger.Warn("Failed to stop MIDI driver", s.logger.Field().Error("error", err))
		}
		s.client = nil
		return
	}

	s.ports = make([]string, len(infos))
	for i, info := range infos {
		s.ports[i] = info.Name
	}

	if len(s.ports) == 0 {
		if err := s.client.OpenVirtualPort(virtualName); err != nil {
			s.logger.Warn("No MIDI output ports found and no virtual port could be created",
				s.logger.Field().Error("error", err))
			return
		}
		s.open = true
		s.virtual = true
		s.logger.Info("No MIDI output ports found; created a virtual port",
			s.logger.Field().String("name", virtualName))
		return
	}

	s.logger.Info(fmt.Sprintf("Available MIDI ports: %d", len(s.ports)))
	for i, name := range s.ports {
		s.logger.Info("MIDI port", s.logger.Field().Int("index", i), s.logger.Field().String("name", name))
	}
	s.logger.Info("Call list_midi_ports to see the ports and open_midi_port(port_index) to select one")
}

// Available reports whether a driver is present.
func (s *Session) Available() bool { return s.client != nil }

// Status returns a snapshot of the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Available: s.client != nil,
		Open:      s.open,
		Virtual:   s.virtual,
		Selected:  s.selected,
		Ports:     append([]string(nil), s.ports...),
	}
}

// OpenPort closes the open port, if any, and opens the listed port at index.
// An out-of-range index leaves the state untouched.
func (s *Session) OpenPort(index int) Result {
	if s.client == nil {
		return unavailable()
	}
	if len(s.ports) == 0 {
		return noPorts()
	}
	if index < 0 || index >= len(s.ports) {
		return outOfRange(len(s.ports))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		if err := s.client.ClosePort(); err != nil {
			s.logger.Warn("Failed to close MIDI port", s.logger.Field().Error("error", err))
		}
		s.open = false
		s.virtual = false
		s.selected = -1
	}

	if err := s.client.OpenPort(index); err != nil {
		s.logger.Error("Failed to open MIDI port",
			s.logger.Field().Int("index", index),
			s.logger.Field().Error("error", err))
		return openFailure(err)
	}

	s.open = true
	s.selected = index
	s.logger.Info("MIDI port opened",
		s.logger.Field().Int("index", index),
		s.logger.Field().String("name", s.ports[index]))
	return ok("Opened MIDI port: %s", s.ports[index])
}

// ListPorts describes the discovered ports and the current selection.
func (s *Session) ListPorts() Result {
	if s.client == nil {
		return unavailable()
	}
	if len(s.ports) == 0 {
		return noPorts()
	}

	s.mu.Lock()
	open, selected := s.open, s.selected
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString("Available MIDI ports:")
	for i, name := range s.ports {
		fmt.Fprintf(&b, "\n%d: %s", i, name)
	}
	if open && selected >= 0 {
		fmt.Fprintf(&b, "\n\nCurrently selected port: %d: %s", selected, s.ports[selected])
	} else {
		b.WriteString("\n\nNo port is currently selected. Use open_midi_port() to select a port.")
	}
	return ok("%s", b.String())
}

// SendNote plays note for the configured duration on channel 1. The Note On
// is written before returning; the release is scheduled and not awaited.
func (s *Session) SendNote(note int) Result {
	if r, ready := s.ready(); !ready {
		return r
	}
	if !validData(note) {
		return invalidArgument("note number must be between 0 and 127, got %d", note)
	}

	if err := s.send(contracts.NoteOn(channel, byte(note), s.velocity)); err != nil {
		return sendFailure(err)
	}

	off := contracts.NoteOff(channel, byte(note))
	s.scheduler.After(s.ctx, fmt.Sprintf("note-off %d", note), s.noteDuration, func() {
		s.sendDeferred(off)
	})
	return ok("Sent MIDI note %d on channel 1", note)
}

// SendCC writes one Control Change on channel 1.
func (s *Session) SendCC(controller, value int) Result {
	if r, ready := s.ready(); !ready {
		return r
	}
	if !validData(controller) {
		return invalidArgument("controller number must be between 0 and 127, got %d", controller)
	}
	if !validData(value) {
		return invalidArgument("value must be between 0 and 127, got %d", value)
	}

	if err := s.send(contracts.ControlChange(channel, byte(controller), byte(value))); err != nil {
		return sendFailure(err)
	}
	return ok("Sent MIDI CC %d=%d on channel 1", controller, value)
}

// StepDuration is the on/off unit of a sequence: half a beat at bpm.
func StepDuration(bpm float64) time.Duration {
	return time.Duration(float64(time.Minute) / bpm / 2)
}

// SendSequence plays notes one after another at bpm. Each note sounds for
// one step and is followed by one step of silence. The first Note On is
// written before returning and the rest runs as a scheduled task; nothing
// stops two sequences from interleaving on the port.
func (s *Session) SendSequence(bpm float64, notes []int) Result {
	if r, ready := s.ready(); !ready {
		return r
	}
	if !(bpm > 0) {
		return invalidArgument("BPM must be a positive number, got %g", bpm)
	}
	for _, note := range notes {
		if !validData(note) {
			return invalidArgument("note number must be between 0 and 127, got %d", note)
		}
	}

	accepted := ok("Sending MIDI note sequence at BPM %g: %s", bpm, joinNotes(notes))
	if len(notes) == 0 {
		return accepted
	}

	if err := s.send(contracts.NoteOn(channel, byte(notes[0]), s.velocity)); err != nil {
		return sendFailure(err)
	}

	step := StepDuration(bpm)
	steps := make([]sequencer.Step, 0, 2*len(notes))
	for i, note := range notes {
		if i > 0 {
			on := contracts.NoteOn(channel, byte(note), s.velocity)
			steps = append(steps, sequencer.Step{Delay: step, Action: func() { s.sendDeferred(on) }})
		}
		off := contracts.NoteOff(channel, byte(note))
		steps = append(steps, sequencer.Step{Delay: step, Action: func() { s.sendDeferred(off) }})
	}
	steps = append(steps, sequencer.Step{Delay: step})

	task := s.scheduler.Schedule(s.ctx, "sequence", steps)
	s.metrics.RecordSequenceStarted()
	s.logger.Info("MIDI sequence scheduled",
		s.logger.Field().String("task", task.ID()),
		s.logger.Field().Float64("bpm", bpm),
		s.logger.Field().Int("notes", len(notes)),
		s.logger.Field().Int64("step_ms", step.Milliseconds()))
	return accepted
}

// Wait blocks until all scheduled notes have been written or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	return s.scheduler.Wait(ctx)
}

// Close cancels scheduled work, closes the open port and stops the driver.
// Later calls return the result of the first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.close() })
	return s.closeErr
}

func (s *Session) close() error {
	s.cancel()
	s.scheduler.Shutdown()

	if s.client == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *multierror.Error
	if s.open {
		s.logger.Info("Closing MIDI connection")
		if err := s.client.ClosePort(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing port: %w", err))
		}
		s.open = false
		s.virtual = false
		s.selected = -1
	}
	if err := s.client.Stop(); err != nil {
		result = multierror.Append(result, fmt.Errorf("stopping driver: %w", err))
	}
	return result.ErrorOrNil()
}

// ready applies the preconditions shared by the send operations.
func (s *Session) ready() (Result, bool) {
	if s.client == nil {
		return unavailable(), false
	}
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return portNotOpen(), false
	}
	return Result{}, true
}

// send writes msg to whatever port is open at the time of the call.
func (s *Session) send(msg contracts.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil || !s.open {
		return contracts.ErrPortNotOpen
	}
	if err := s.client.Send(msg); err != nil {
		s.metrics.RecordSendFailure()
		return err
	}

	kind := msg.Command().String()
	if msg.Command() == contracts.NoteOnCommand && msg[2] == contracts.ReleaseVelocity {
		kind = contracts.NoteOffCommand.String()
	}
	s.metrics.RecordMessageSent(kind)
	return nil
}

// sendDeferred is the fire-and-forget variant used by scheduled steps.
func (s *Session) sendDeferred(msg contracts.Message) {
	if err := s.send(msg); err != nil {
		s.logger.Warn("Scheduled MIDI message dropped",
			s.logger.Field().String("message", msg.String()),
			s.logger.Field().Error("error", err))
	}
}

func validData(v int) bool {
	return v >= 0 && v <= maxData
}
