package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/burrowworks/critterledger/internal/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Critter Ledger Activity MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
)

// Config configures the MCP server.
type Config struct {
	// StorePath is the sqlite database file holding the node state.
	StorePath string
	// Transport selects the MCP transport. Defaults to stdio.
	Transport TransportKind
	// Locale is the locale rejection messages are rendered in.
	Locale string
	// Params are the engine parameters transition previews run under.
	// Zero Params take the defaults.
	Params session.Params
}

// Store is the node state surface the MCP tools read. The sqlite store
// implements it.
type Store interface {
	storage.Store
	storage.SessionSearcher
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	store     Store
}

// New creates a configured MCP server over the node store at cfg.StorePath.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.StorePath) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open session store at %s: %w", cfg.StorePath, err)
	}
	return newWithStore(cfg, store), nil
}

// newWithStore assembles the server around an already open store.
func newWithStore(cfg Config, store Store) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerInspectionTools(mcpServer, store)
	registerPreviewTools(mcpServer, store, cfg.Locale, cfg.Params)
	registerActivityResources(mcpServer, store)
	return &Server{mcpServer: mcpServer, store: store}
}

// Run creates and serves the MCP server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		server, err := New(cfg)
		if err != nil {
			return err
		}
		return server.serveWithTransport(ctx, &mcp.StdioTransport{})
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the store held by the server.
func (s *Server) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return err
	}
	s.store = nil
	return nil
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close session store: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close session store: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
