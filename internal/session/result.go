package session

import (
	"fmt"
	"strings"
)

// Kind classifies the outcome of a session operation.
type Kind int

const (
	KindOK Kind = iota
	KindUnavailable
	KindNoPorts
	KindOutOfRange
	KindPortNotOpen
	KindInvalidArgument
	KindTransportFailure
)

var kindNames = map[Kind]string{
	KindOK:               "ok",
	KindUnavailable:      "unavailable",
	KindNoPorts:          "no_ports",
	KindOutOfRange:       "out_of_range",
	KindPortNotOpen:      "port_not_open",
	KindInvalidArgument:  "invalid_argument",
	KindTransportFailure: "transport_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is what every operation returns. Callers that only speak text
// use String; everything else can switch on Kind.
type Result struct {
	Kind Kind
	Text string
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

func (r Result) String() string { return r.Text }

func ok(format string, args ...any) Result {
	return Result{Kind: KindOK, Text: fmt.Sprintf(format, args...)}
}

func unavailable() Result {
	return Result{
		Kind: KindUnavailable,
		Text: "MIDI is unavailable because the MIDI driver could not be initialized.",
	}
}

func noPorts() Result {
	return Result{Kind: KindNoPorts, Text: "No MIDI ports are available."}
}

func outOfRange(count int) Result {
	return Result{
		Kind: KindOutOfRange,
		Text: fmt.Sprintf("Error: specify a valid port index (0-%d)", count-1),
	}
}

func portNotOpen() Result {
	return Result{
		Kind: KindPortNotOpen,
		Text: "MIDI port is not open. Use open_midi_port() to select a port first.",
	}
}

func invalidArgument(format string, args ...any) Result {
	return Result{Kind: KindInvalidArgument, Text: "Error: " + fmt.Sprintf(format, args...)}
}

func openFailure(err error) Result {
	return Result{Kind: KindTransportFailure, Text: fmt.Sprintf("Error opening MIDI port: %v", err)}
}

func sendFailure(err error) Result {
	return Result{Kind: KindTransportFailure, Text: fmt.Sprintf("MIDI send error: %v", err)}
}

func joinNotes(notes []int) string {
	parts := make([]string, len(notes))
	for i, n := range notes {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
