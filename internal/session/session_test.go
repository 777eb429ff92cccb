package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leandrodaf/midimcp/internal/logger"
	"github.com/leandrodaf/midimcp/internal/metrics"
	"github.com/leandrodaf/midimcp/internal/midi/midimem"
	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	clocktesting "k8s.io/utils/clock/testing"
)

// countingClock counts timers armed through After, so a test can tell when
// several tasks are all parked before stepping time.
type countingClock struct {
	*clocktesting.FakeClock
	armed atomic.Int64
}

func (c *countingClock) After(d time.Duration) <-chan time.Time {
	ch := c.FakeClock.After(d)
	c.armed.Add(1)
	return ch
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *clocktesting.FakeClock
	client  *midimem.ClientMem
	session *Session
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, ports ...string) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	clk := clocktesting.NewFakeClock(baseTime)
	client := midimem.New(log, clk, ports...)
	m := metrics.New()

	s := New(client, Options{Logger: log, Clock: clk, Metrics: m})
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{clock: clk, client: client, session: s, metrics: m, logs: logs}
}

// waitForTimer blocks until a scheduled task is waiting on the fake clock.
func (f *fixture) waitForTimer(t *testing.T) {
	t.Helper()
	require.Eventually(t, f.clock.HasWaiters, time.Second, time.Millisecond)
}

func (f *fixture) waitForMessages(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.client.Records()) >= n }, time.Second, time.Millisecond)
}

func TestNew_ListsPorts(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")

	status := f.session.Status()
	assert.True(t, status.Available)
	assert.False(t, status.Open)
	assert.Equal(t, -1, status.Selected)
	assert.Equal(t, []string{"Synth A", "Synth B"}, status.Ports)
	assert.Equal(t, []string{"list"}, f.client.Calls())
}

func TestNew_NoPortsCreatesVirtualPort(t *testing.T) {
	f := newFixture(t)

	status := f.session.Status()
	assert.True(t, status.Open)
	assert.True(t, status.Virtual)
	assert.Equal(t, -1, status.Selected)

	open, name := f.client.IsOpen()
	assert.True(t, open)
	assert.Equal(t, DefaultVirtualPortName, name)

	r := f.session.SendCC(7, 100)
	assert.True(t, r.OK(), r.Text)
	assert.Equal(t, []contracts.Message{{0xB0, 7, 100}}, f.client.Messages())
}

func TestNew_VirtualPortUnsupported(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	clk := clocktesting.NewFakeClock(baseTime)
	client := midimem.New(log, clk)
	client.VirtualErr = contracts.ErrVirtualPortUnsupported

	s := New(client, Options{Logger: log, Clock: clk})
	defer s.Close()

	assert.False(t, s.Status().Open)
	assert.Equal(t, KindNoPorts, s.ListPorts().Kind)
	assert.Equal(t, KindNoPorts, s.OpenPort(0).Kind)
	assert.Equal(t, KindPortNotOpen, s.SendNote(60).Kind)
}

func TestNew_ListFailureMakesSessionUnavailable(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	clk := clocktesting.NewFakeClock(baseTime)
	client := midimem.New(log, clk, "Synth A")
	client.ListErr = errors.New("alsa: no sequencer")

	s := New(client, Options{Logger: log, Clock: clk})
	defer s.Close()

	assert.False(t, s.Available())
	assert.True(t, client.Stopped())
	assert.Equal(t, KindUnavailable, s.ListPorts().Kind)
}

func TestUnavailable_EveryOperationReturnsAdvisory(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	s := New(nil, Options{Logger: logger.NewWithCore(core), Clock: clocktesting.NewFakeClock(baseTime)})
	defer s.Close()

	results := []Result{
		s.OpenPort(0),
		s.ListPorts(),
		s.SendNote(60),
		s.SendCC(7, 100),
		s.SendSequence(120, []int{60}),
	}
	for _, r := range results {
		assert.Equal(t, KindUnavailable, r.Kind)
		assert.Equal(t, unavailable().Text, r.String())
	}
	assert.NoError(t, s.Close())
}

func TestOpenPort_OutOfRangeLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")
	require.True(t, f.session.OpenPort(1).OK())
	before := f.session.Status()
	calls := len(f.client.Calls())

	for _, index := range []int{-1, 2, 100} {
		r := f.session.OpenPort(index)
		assert.Equal(t, KindOutOfRange, r.Kind)
		assert.Equal(t, "Error: specify a valid port index (0-1)", r.Text)
	}

	assert.Equal(t, before, f.session.Status())
	assert.Len(t, f.client.Calls(), calls)
}

func TestOpenPort_SelectsPort(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")

	r := f.session.OpenPort(1)
	assert.Equal(t, KindOK, r.Kind)
	assert.Equal(t, "Opened MIDI port: Synth B", r.Text)

	status := f.session.Status()
	assert.True(t, status.Open)
	assert.Equal(t, 1, status.Selected)
	assert.Contains(t, f.session.ListPorts().Text, "Currently selected port: 1: Synth B")
}

func TestOpenPort_ClosesPreviousPortFirst(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")

	require.True(t, f.session.OpenPort(0).OK())
	require.True(t, f.session.OpenPort(1).OK())

	assert.Equal(t, []string{"list", "open:0", "close", "open:1"}, f.client.Calls())
	_, name := f.client.IsOpen()
	assert.Equal(t, "Synth B", name)
}

func TestOpenPort_FailureResetsState(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")
	require.True(t, f.session.OpenPort(0).OK())

	f.client.OpenErr = errors.New("device busy")
	r := f.session.OpenPort(1)
	assert.Equal(t, KindTransportFailure, r.Kind)
	assert.Equal(t, "Error opening MIDI port: device busy", r.Text)

	status := f.session.Status()
	assert.False(t, status.Open)
	assert.Equal(t, -1, status.Selected)
}

func TestListPorts(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")

	assert.Equal(t,
		"Available MIDI ports:\n0: Synth A\n1: Synth B\n\nNo port is currently selected. Use open_midi_port() to select a port.",
		f.session.ListPorts().Text)

	require.True(t, f.session.OpenPort(0).OK())
	assert.Equal(t,
		"Available MIDI ports:\n0: Synth A\n1: Synth B\n\nCurrently selected port: 0: Synth A",
		f.session.ListPorts().Text)
}

func TestSendNote_BeforeOpen(t *testing.T) {
	f := newFixture(t, "Synth A")

	r := f.session.SendNote(60)
	assert.Equal(t, KindPortNotOpen, r.Kind)
	assert.Equal(t, "MIDI port is not open. Use open_midi_port() to select a port first.", r.Text)
	assert.Empty(t, f.client.Records())
	assert.Equal(t, 0, f.session.scheduler.Active())
}

func TestSendNote_ReleasesAfterNoteDuration(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())

	r := f.session.SendNote(60)
	assert.Equal(t, "Sent MIDI note 60 on channel 1", r.Text)
	assert.Equal(t, []contracts.Message{{0x90, 60, 100}}, f.client.Messages())

	f.waitForTimer(t)
	f.clock.Step(DefaultNoteDuration - time.Millisecond)
	assert.Len(t, f.client.Records(), 1)

	f.clock.Step(time.Millisecond)
	f.waitForMessages(t, 2)

	records := f.client.Records()
	require.Len(t, records, 2)
	assert.Equal(t, contracts.Message{0x90, 60, 0}, records[1].Message)
	assert.Equal(t, DefaultNoteDuration, records[1].At.Sub(records[0].At))
}

func TestSendNote_InvalidNote(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())

	assert.Equal(t, KindInvalidArgument, f.session.SendNote(128).Kind)
	assert.Equal(t, KindInvalidArgument, f.session.SendNote(-1).Kind)
	assert.Empty(t, f.client.Records())
}

func TestSendNote_SendFailure(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())
	f.client.SendErr = errors.New("device unplugged")

	r := f.session.SendNote(60)
	assert.Equal(t, KindTransportFailure, r.Kind)
	assert.Equal(t, "MIDI send error: device unplugged", r.Text)
	assert.Equal(t, 0, f.session.scheduler.Active())
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(`
# HELP midimcp_send_failures_total Number of MIDI writes rejected by the driver
# TYPE midimcp_send_failures_total counter
midimcp_send_failures_total 1
`), "midimcp_send_failures_total"))
}

func TestSendCC(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())

	r := f.session.SendCC(7, 100)
	assert.Equal(t, "Sent MIDI CC 7=100 on channel 1", r.Text)
	assert.Equal(t, []contracts.Message{{0xB0, 7, 100}}, f.client.Messages())
	assert.Equal(t, 0, f.session.scheduler.Active(), "no delayed follow-up")
}

func TestSendSequence_PlaysNotesInOrder(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())

	r := f.session.SendSequence(120, []int{60, 62, 64})
	assert.Equal(t, KindOK, r.Kind)
	assert.Equal(t, "Sending MIDI note sequence at BPM 120: 60, 62, 64", r.Text)
	assert.Equal(t, []contracts.Message{{0x90, 60, 100}}, f.client.Messages())

	step := 250 * time.Millisecond
	assert.Equal(t, step, StepDuration(120))

	// Five more messages, then one trailing rest.
	for i := 2; i <= 6; i++ {
		f.waitForTimer(t)
		f.clock.Step(step)
		f.waitForMessages(t, i)
	}
	f.waitForTimer(t)
	f.clock.Step(step)
	require.Eventually(t, func() bool { return f.session.scheduler.Active() == 0 }, time.Second, time.Millisecond)

	records := f.client.Records()
	want := []contracts.Message{
		{0x90, 60, 100}, {0x90, 60, 0},
		{0x90, 62, 100}, {0x90, 62, 0},
		{0x90, 64, 100}, {0x90, 64, 0},
	}
	require.Len(t, records, len(want))
	for i, rec := range records {
		assert.Equal(t, want[i], rec.Message, "message %d", i)
		assert.Equal(t, time.Duration(i)*step, rec.At.Sub(baseTime), "time of message %d", i)
	}
	assert.Equal(t, 6*step, f.clock.Since(baseTime))
}

func TestSendSequence_EmptyNotes(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())

	r := f.session.SendSequence(90, nil)
	assert.True(t, r.OK())
	assert.Empty(t, f.client.Records())
	assert.Equal(t, 0, f.session.scheduler.Active())
}

func TestSendSequence_InvalidBPM(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())

	for _, bpm := range []float64{0, -60} {
		assert.Equal(t, KindInvalidArgument, f.session.SendSequence(bpm, []int{60}).Kind)
	}
	assert.Empty(t, f.client.Records())
}

func TestSendSequence_ContinuesOnReopenedPort(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")
	require.True(t, f.session.OpenPort(0).OK())
	require.True(t, f.session.SendSequence(120, []int{60, 62}).OK())

	// Switching ports does not cancel the running sequence; later notes go
	// to the newly opened port.
	require.True(t, f.session.OpenPort(1).OK())
	f.waitForTimer(t)
	f.clock.Step(250 * time.Millisecond)
	f.waitForMessages(t, 2)

	records := f.client.Records()
	assert.Equal(t, "Synth A", records[0].Port)
	assert.Equal(t, "Synth B", records[1].Port)
	assert.Equal(t, contracts.Message{0x90, 60, 0}, records[1].Message)
}

func TestClose_ClosesOpenPortAndCancelsTasks(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())
	require.True(t, f.session.SendSequence(60, []int{60, 62, 64}).OK())
	f.waitForTimer(t)

	require.NoError(t, f.session.Close())

	assert.Equal(t, 0, f.session.scheduler.Active())
	assert.True(t, f.client.Stopped())
	assert.Equal(t, []string{"list", "open:0", "close", "stop"}, f.client.Calls())
	assert.False(t, f.session.Status().Open)
	assert.Len(t, f.client.Records(), 1)
}

func TestMetrics_CountMessages(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())
	require.True(t, f.session.SendCC(1, 64).OK())
	require.True(t, f.session.SendNote(60).OK())

	f.waitForTimer(t)
	f.clock.Step(DefaultNoteDuration)
	f.waitForMessages(t, 3)

	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(`
# HELP midimcp_messages_sent_total Number of MIDI messages written to the output port
# TYPE midimcp_messages_sent_total counter
midimcp_messages_sent_total{kind="control_change"} 1
midimcp_messages_sent_total{kind="note_off"} 1
midimcp_messages_sent_total{kind="note_on"} 1
`), "midimcp_messages_sent_total"))
}

func TestSendNote_ReleaseDroppedWhenPortClosed(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")
	require.True(t, f.session.OpenPort(0).OK())
	require.True(t, f.session.SendNote(60).OK())

	f.client.OpenErr = errors.New("device busy")
	require.Equal(t, KindTransportFailure, f.session.OpenPort(1).Kind)

	f.waitForTimer(t)
	f.clock.Step(DefaultNoteDuration)
	require.Eventually(t, func() bool {
		return f.logs.FilterMessage("Scheduled MIDI message dropped").Len() == 1
	}, time.Second, time.Millisecond)
	assert.Len(t, f.client.Records(), 1)
}

func TestNew_LogsStartupBanner(t *testing.T) {
	f := newFixture(t, "Synth A", "Synth B")

	assert.Equal(t, 1, f.logs.FilterMessage("Available MIDI ports: 2").Len())
	ports := f.logs.FilterMessage("MIDI port").All()
	require.Len(t, ports, 2)
	assert.Equal(t, "Synth B", ports[1].ContextMap()["name"])
}

func TestSendSequence_OverlappingSequencesInterleave(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	clk := &countingClock{FakeClock: clocktesting.NewFakeClock(baseTime)}
	client := midimem.New(log, clk, "Synth A")
	s := New(client, Options{Logger: log, Clock: clk})
	defer s.Close()

	require.True(t, s.OpenPort(0).OK())
	require.True(t, s.SendSequence(120, []int{60, 62}).OK())
	require.True(t, s.SendSequence(120, []int{70, 72}).OK())

	step := StepDuration(120)
	// Each sequence of two notes waits four times: off, on, off, rest.
	for i := int64(1); i <= 4; i++ {
		require.Eventually(t, func() bool { return clk.armed.Load() >= 2*i }, time.Second, time.Millisecond)
		clk.Step(step)
	}
	require.NoError(t, s.Wait(context.Background()))

	records := client.Records()
	require.Len(t, records, 8)

	byNotes := func(notes ...byte) []midimem.Record {
		var out []midimem.Record
		for _, rec := range records {
			for _, n := range notes {
				if rec.Message[1] == n {
					out = append(out, rec)
				}
			}
		}
		return out
	}

	for _, seq := range [][2]byte{{60, 62}, {70, 72}} {
		got := byNotes(seq[0], seq[1])
		want := []contracts.Message{
			contracts.NoteOn(0, seq[0], 100), contracts.NoteOff(0, seq[0]),
			contracts.NoteOn(0, seq[1], 100), contracts.NoteOff(0, seq[1]),
		}
		require.Len(t, got, len(want))
		for i, rec := range got {
			assert.Equal(t, want[i], rec.Message, "sequence %v message %d", seq, i)
			assert.Equal(t, time.Duration(i)*step, rec.At.Sub(baseTime), "sequence %v message %d", seq, i)
		}
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	f := newFixture(t, "Synth A")
	require.True(t, f.session.OpenPort(0).OK())

	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Close())

	assert.Equal(t, []string{"list", "open:0", "close", "stop"}, f.client.Calls())
}

func TestNew_ZeroOptions(t *testing.T) {
	client := midimem.New(logger.NewWithCore(zapcore.NewNopCore()), clocktesting.NewFakePassiveClock(baseTime), "Synth A")

	var s *Session
	require.NotPanics(t, func() { s = New(client, Options{}) })
	defer s.Close()

	assert.Contains(t, s.ListPorts().Text, "0: Synth A")
	require.True(t, s.OpenPort(0).OK())
	assert.True(t, s.SendCC(1, 2).OK())
	assert.Equal(t, KindInvalidArgument, s.SendNote(200).Kind)
}

func TestNew_ZeroOptionsUnavailable(t *testing.T) {
	var s *Session
	require.NotPanics(t, func() { s = New(nil, Options{}) })
	defer s.Close()

	assert.Equal(t, KindUnavailable, s.ListPorts().Kind)
}
