// Package mcp implements the MCP (Model Context Protocol) server for lockbox.
// The surface is strictly read-only and never returns plaintext sensitive
// values: listings carry metadata and masked previews only.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"lockbox/pkg/store"
)

// Server represents the MCP server for lockbox.
type Server struct {
	server *mcp.Server
	store  *store.Store
	policy *Policy
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	// VaultPath is the path to the vault directory.
	// If empty, defaults to ~/.lockbox
	VaultPath string

	// Password is the master password for the vault.
	// If empty, the server will attempt to read from the LOCKBOX_PASSWORD
	// environment variable.
	Password string
}

// NewServer creates a new MCP server instance over an unlocked vault.
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts == nil {
		opts = &ServerOptions{}
	}

	vaultPath := opts.VaultPath
	if vaultPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		vaultPath = filepath.Join(home, ".lockbox")
	}

	policy, err := LoadPolicy(vaultPath)
	if err != nil {
		// Policy load failure is not fatal - we operate in restricted mode
		log.Printf("warning: failed to load MCP policy: %v", err)
		policy = RestrictedPolicy()
	}

	s := store.New(vaultPath)

	password := opts.Password
	if password == "" {
		password = os.Getenv("LOCKBOX_PASSWORD")
		// Clear the environment variable after reading for security
		os.Unsetenv("LOCKBOX_PASSWORD")
	}
	if password == "" {
		return nil, fmt.Errorf("no password provided: set LOCKBOX_PASSWORD environment variable")
	}

	if err := s.Unlock(password); err != nil {
		return nil, fmt.Errorf("failed to unlock vault: %w", err)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "lockbox",
			Version: "1.0.0",
		},
		nil,
	)

	srv := &Server{
		server: mcpServer,
		store:  s,
		policy: policy,
	}
	srv.registerTools()

	return srv, nil
}

// newServerWithStore wires a server over an existing unlocked store. Used by
// tests to skip the unlock path.
func newServerWithStore(s *store.Store, policy *Policy) *Server {
	srv := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: "lockbox", Version: "1.0.0"}, nil),
		store:  s,
		policy: policy,
	}
	srv.registerTools()
	return srv
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	// item_list - List vault items with masked previews (no sensitive values)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "item_list",
		Description: "List vault items with label, category and a masked preview. Does NOT return sensitive field values.",
	}, s.handleItemList)

	// item_search - Search items by label and non-sensitive fields
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "item_search",
		Description: "Search vault items. Matching covers the label and non-sensitive fields only; results carry masked previews.",
	}, s.handleItemSearch)

	// item_get_masked - Get one item with sensitive values masked
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "item_get_masked",
		Description: "Get a vault item by id with every sensitive value masked (e.g. '••••••••3456'). Requires policy approval.",
	}, s.handleItemGetMasked)

	// category_list - List category definitions
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "category_list",
		Description: "List category definitions: id, label and field schema. Contains no item data.",
	}, s.handleCategoryList)
}

// Run starts the MCP server using stdio transport.
func (s *Server) Run(ctx context.Context) error {
	defer s.store.Lock()

	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close closes the server and locks the vault.
func (s *Server) Close() error {
	s.store.Lock()
	return nil
}
