package mcpserver

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/leandrodaf/midimcp/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolOpenPort     = "open_midi_port"
	ToolListPorts    = "list_midi_ports"
	ToolSendNote     = "send_midi_note"
	ToolSendCC       = "send_midi_cc"
	ToolSendSequence = "send_midi_sequence"
)

// OpenPortInput is the input of open_midi_port.
type OpenPortInput struct {
	PortIndex int `json:"port_index" jsonschema:"Index of the MIDI port to open, as shown by list_midi_ports"`
}

// ListPortsInput is the (empty) input of list_midi_ports.
type ListPortsInput struct{}

// SendNoteInput is the input of send_midi_note.
type SendNoteInput struct {
	NoteNumber int `json:"note_number" jsonschema:"MIDI note number (0-127)"`
}

// SendCCInput is the input of send_midi_cc.
type SendCCInput struct {
	Controller int `json:"controller" jsonschema:"Controller number (0-127)"`
	Value      int `json:"value" jsonschema:"Control value (0-127)"`
}

// SendSequenceInput is the input of send_midi_sequence.
type SendSequenceInput struct {
	BPM   float64 `json:"bpm" jsonschema:"Tempo in beats per minute"`
	Notes []int   `json:"notes" jsonschema:"MIDI note numbers to play in order (each 0-127)"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolOpenPort,
		Description: "Opens the MIDI output port at the given index, closing any port already open",
		InputSchema: mustSchema[OpenPortInput](),
	}, s.openPort)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolListPorts,
		Description: "Lists the available MIDI output ports and the currently selected one",
		InputSchema: mustSchema[ListPortsInput](),
	}, s.listPorts)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSendNote,
		Description: "Plays a MIDI note on channel 1 for half a second",
		InputSchema: mustSchema[SendNoteInput](dataByte("note_number")),
	}, s.sendNote)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSendCC,
		Description: "Sends a MIDI control change message on channel 1",
		InputSchema: mustSchema[SendCCInput](dataByte("controller"), dataByte("value")),
	}, s.sendCC)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSendSequence,
		Description: "Plays MIDI notes one after another at the given BPM; returns before playback ends",
		InputSchema: mustSchema[SendSequenceInput](positive("bpm"), dataByteItems("notes")),
	}, s.sendSequence)
}

func (s *Server) openPort(_ context.Context, _ *mcp.CallToolRequest, in OpenPortInput) (*mcp.CallToolResult, any, error) {
	return s.result(ToolOpenPort, s.session.OpenPort(in.PortIndex)), nil, nil
}

func (s *Server) listPorts(_ context.Context, _ *mcp.CallToolRequest, _ ListPortsInput) (*mcp.CallToolResult, any, error) {
	return s.result(ToolListPorts, s.session.ListPorts()), nil, nil
}

func (s *Server) sendNote(_ context.Context, _ *mcp.CallToolRequest, in SendNoteInput) (*mcp.CallToolResult, any, error) {
	return s.result(ToolSendNote, s.session.SendNote(in.NoteNumber)), nil, nil
}

func (s *Server) sendCC(_ context.Context, _ *mcp.CallToolRequest, in SendCCInput) (*mcp.CallToolResult, any, error) {
	return s.result(ToolSendCC, s.session.SendCC(in.Controller, in.Value)), nil, nil
}

func (s *Server) sendSequence(_ context.Context, _ *mcp.CallToolRequest, in SendSequenceInput) (*mcp.CallToolResult, any, error) {
	return s.result(ToolSendSequence, s.session.SendSequence(in.BPM, in.Notes)), nil, nil
}

// result renders r as plain text. Failures are still successful tool
// results; clients read the text to tell them apart.
func (s *Server) result(tool string, r session.Result) *mcp.CallToolResult {
	s.metrics.RecordToolCall(tool, r.Kind.String())
	if !r.OK() {
		s.logger.Debug("Tool returned an advisory",
			s.logger.Field().String("tool", tool),
			s.logger.Field().String("kind", r.Kind.String()))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: r.String()}},
	}
}

type schemaOption func(*jsonschema.Schema)

// mustSchema infers the input schema of T and applies opts. It panics on
// failure since the input types are fixed at compile time.
func mustSchema[T any](opts ...schemaOption) *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("mcpserver: inferring schema for %T: %v", *new(T), err))
	}
	for _, opt := range opts {
		opt(schema)
	}
	return schema
}

func property(schema *jsonschema.Schema, name string) *jsonschema.Schema {
	prop, ok := schema.Properties[name]
	if !ok {
		panic("mcpserver: no schema property " + name)
	}
	return prop
}

func setDataByteRange(s *jsonschema.Schema) {
	lo, hi := 0.0, 127.0
	s.Minimum = &lo
	s.Maximum = &hi
}

// dataByte restricts an integer property to [0,127].
func dataByte(name string) schemaOption {
	return func(schema *jsonschema.Schema) {
		setDataByteRange(property(schema, name))
	}
}

// dataByteItems restricts every item of an array property to [0,127].
func dataByteItems(name string) schemaOption {
	return func(schema *jsonschema.Schema) {
		prop := property(schema, name)
		if prop.Items == nil {
			prop.Items = &jsonschema.Schema{Type: "integer"}
		}
		setDataByteRange(prop.Items)
	}
}

// positive requires a number property to be greater than zero.
func positive(name string) schemaOption {
	return func(schema *jsonschema.Schema) {
		zero := 0.0
		property(schema, name).ExclusiveMinimum = &zero
	}
}
