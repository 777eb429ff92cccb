// Package mcpserver exposes a MIDI session as MCP tools.
//
// The server can be reached over stdio (the usual way an agent host starts
// it), over streamable HTTP, or in-process through an in-memory transport
// pair, which is how the CLI's call command and the tests drive it.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leandrodaf/midimcp/internal/logger"
	"github.com/leandrodaf/midimcp/internal/metrics"
	"github.com/leandrodaf/midimcp/internal/session"
	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Default implementation info reported to clients.
const (
	DefaultName    = "midimcp"
	DefaultVersion = "v0.1.0"
)

// ErrNoTextContent is returned by CallTool when a tool answers without text.
var ErrNoTextContent = errors.New("tool result has no text content")

// Options configures a Server. Empty fields pick the defaults; a nil
// Metrics records nothing.
type Options struct {
	Name    string
	Version string
	Logger  contracts.Logger
	Metrics *metrics.Metrics
}

// Server wires the five MIDI tools to a session.
type Server struct {
	mcp     *mcp.Server
	impl    *mcp.Implementation
	session *session.Session
	logger  contracts.Logger
	metrics *metrics.Metrics
}

// New creates the MCP server and registers the tools.
func New(sess *session.Session, opts Options) *Server {
	if sess == nil {
		panic("mcpserver: nil session")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewZapLogger()
	}

	impl := &mcp.Implementation{Name: opts.Name, Version: opts.Version}
	s := &Server{
		mcp:     mcp.NewServer(impl, nil),
		impl:    impl,
		session: sess,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Implementation returns the server identity.
func (s *Server) Implementation() *mcp.Implementation {
	return s.impl
}

// ServeStdio serves one client over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("Serving MCP over stdio", s.logger.Field().String("server", s.impl.Name))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Handler returns the HTTP handler: MCP on every path except /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.Handle("/", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil))
	return mux
}

// ServeHTTP listens on addr until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving MCP over HTTP", s.logger.Field().String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		return nil
	}
}

// InMemorySession connects a client to the server through in-memory
// transports. Callers close the client session when done.
func (s *Server) InMemorySession(ctx context.Context) (*mcp.ServerSession, *mcp.ClientSession, error) {
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := s.mcp.Connect(ctx, serverTransport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting server: %w", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: s.impl.Name + "-client", Version: s.impl.Version}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		_ = serverSession.Close()
		return nil, nil, fmt.Errorf("connecting client: %w", err)
	}
	return serverSession, clientSession, nil
}

// CallTool invokes a tool in-process through a full MCP round trip, so
// input validation behaves exactly as for a remote client. It returns the
// text of the result.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	_, clientSession, err := s.InMemorySession(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = clientSession.Close() }()

	if args == nil {
		args = map[string]any{}
	}
	res, err := clientSession.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	return TextOf(res)
}

// TextOf joins the text contents of a tool result.
func TextOf(res *mcp.CallToolResult) (string, error) {
	var parts []string
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoTextContent
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		return "", errors.New(text)
	}
	return text, nil
}
