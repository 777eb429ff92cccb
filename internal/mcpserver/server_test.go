package mcpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/leandrodaf/midimcp/internal/logger"
	"github.com/leandrodaf/midimcp/internal/metrics"
	"github.com/leandrodaf/midimcp/internal/midi/midimem"
	"github.com/leandrodaf/midimcp/internal/session"
	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	clocktesting "k8s.io/utils/clock/testing"
)

func newTestServer(t *testing.T, ports ...string) (*Server, *midimem.ClientMem, *clocktesting.FakeClock) {
	t.Helper()
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	clk := clocktesting.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	client := midimem.New(log, clk, ports...)
	m := metrics.New()

	sess := session.New(client, session.Options{Logger: log, Clock: clk, Metrics: m})
	t.Cleanup(func() { _ = sess.Close() })

	return New(sess, Options{Logger: log, Metrics: m}), client, clk
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	_, cs, err := s.InMemorySession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestListTools(t *testing.T) {
	s, _, _ := newTestServer(t, "Synth A")
	cs := connect(t, s)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.NotNil(t, tool.InputSchema, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{ToolListPorts, ToolOpenPort, ToolSendCC, ToolSendNote, ToolSendSequence}, names)
}

func TestCallTool_Flow(t *testing.T) {
	s, client, _ := newTestServer(t, "Synth A", "Synth B")
	ctx := context.Background()

	text, err := s.CallTool(ctx, ToolSendNote, map[string]any{"note_number": 60})
	require.NoError(t, err)
	assert.Equal(t, "MIDI port is not open. Use open_midi_port() to select a port first.", text)

	text, err = s.CallTool(ctx, ToolOpenPort, map[string]any{"port_index": 1})
	require.NoError(t, err)
	assert.Equal(t, "Opened MIDI port: Synth B", text)

	text, err = s.CallTool(ctx, ToolListPorts, nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Currently selected port: 1: Synth B")

	text, err = s.CallTool(ctx, ToolSendCC, map[string]any{"controller": 7, "value": 100})
	require.NoError(t, err)
	assert.Equal(t, "Sent MIDI CC 7=100 on channel 1", text)

	text, err = s.CallTool(ctx, ToolSendNote, map[string]any{"note_number": 60})
	require.NoError(t, err)
	assert.Equal(t, "Sent MIDI note 60 on channel 1", text)

	text, err = s.CallTool(ctx, ToolSendSequence, map[string]any{"bpm": 120, "notes": []int{60, 62, 64}})
	require.NoError(t, err)
	assert.Equal(t, "Sending MIDI note sequence at BPM 120: 60, 62, 64", text)

	assert.Equal(t, []contracts.Message{
		{0xB0, 7, 100},
		{0x90, 60, 100},
		{0x90, 60, 100},
	}, client.Messages())
}

func TestCallTool_OutOfRangeIsAdvisory(t *testing.T) {
	s, _, _ := newTestServer(t, "Synth A")
	cs := connect(t, s)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolOpenPort,
		Arguments: map[string]any{"port_index": 5},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text, err := TextOf(res)
	require.NoError(t, err)
	assert.Equal(t, "Error: specify a valid port index (0-0)", text)
}

func TestCallTool_RejectsInvalidArguments(t *testing.T) {
	s, client, _ := newTestServer(t, "Synth A")
	ctx := context.Background()
	_, err := s.CallTool(ctx, ToolOpenPort, map[string]any{"port_index": 0})
	require.NoError(t, err)

	tests := []struct {
		tool string
		args map[string]any
	}{
		{ToolSendNote, map[string]any{"note_number": 128}},
		{ToolSendNote, map[string]any{"note_number": -1}},
		{ToolSendCC, map[string]any{"controller": 1, "value": 300}},
		{ToolSendSequence, map[string]any{"bpm": 0, "notes": []int{60}}},
		{ToolSendSequence, map[string]any{"bpm": 120, "notes": []int{60, 200}}},
	}
	for _, tt := range tests {
		_, err := s.CallTool(ctx, tt.tool, tt.args)
		assert.Error(t, err, "%s %v", tt.tool, tt.args)
	}
	assert.Empty(t, client.Records())
}

func TestCallTool_Unavailable(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)
	sess := session.New(nil, session.Options{Logger: log})
	defer sess.Close()
	s := New(sess, Options{Logger: log})

	for _, name := range []string{ToolOpenPort, ToolListPorts, ToolSendNote, ToolSendCC, ToolSendSequence} {
		args := map[string]any{
			"port_index": 0, "note_number": 60, "controller": 1, "value": 1, "bpm": 120, "notes": []int{60},
		}
		text, err := s.CallTool(context.Background(), name, pick(name, args))
		require.NoError(t, err, name)
		assert.Equal(t, "MIDI is unavailable because the MIDI driver could not be initialized.", text, name)
	}
}

// pick keeps only the arguments each tool declares.
func pick(tool string, all map[string]any) map[string]any {
	keys := map[string][]string{
		ToolOpenPort:     {"port_index"},
		ToolListPorts:    {},
		ToolSendNote:     {"note_number"},
		ToolSendCC:       {"controller", "value"},
		ToolSendSequence: {"bpm", "notes"},
	}[tool]
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = all[k]
	}
	return out
}

func TestHandler_Metrics(t *testing.T) {
	s, _, _ := newTestServer(t, "Synth A")
	_, err := s.CallTool(context.Background(), ToolListPorts, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `midimcp_tool_calls_total{outcome="ok",tool="list_midi_ports"} 1`)
}

func TestHandler_StreamableHTTP(t *testing.T) {
	s, _, _ := newTestServer(t, "Synth A")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL}, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: ToolListPorts, Arguments: map[string]any{}})
	require.NoError(t, err)
	text, err := TextOf(res)
	require.NoError(t, err)
	assert.Contains(t, text, "0: Synth A")
}

func TestNew_PanicsWithoutSession(t *testing.T) {
	assert.Panics(t, func() { New(nil, Options{}) })
}

func TestImplementationDefaults(t *testing.T) {
	s, _, _ := newTestServer(t)
	assert.Equal(t, DefaultName, s.Implementation().Name)
	assert.Equal(t, DefaultVersion, s.Implementation().Version)
	assert.NotNil(t, s.MCPServer())
}

func TestNew_ZeroOptions(t *testing.T) {
	sess := session.New(nil, session.Options{})
	defer sess.Close()
	s := New(sess, Options{})

	text, err := s.CallTool(context.Background(), ToolListPorts, nil)
	require.NoError(t, err)
	assert.Equal(t, "MIDI is unavailable because the MIDI driver could not be initialized.", text)
}
