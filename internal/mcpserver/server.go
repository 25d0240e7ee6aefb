package mcpserver

import (
	"context"
	"time"

	"github.com/b0ase/path402/apps/clawwallet/internal/db"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DaemonInfo gives MCP tools access to the running wallet.
type DaemonInfo interface {
	WalletID() string
	Uptime() time.Duration
	BackendURL() string
	Engine() *reconcile.Engine
	RecentSettlements(limit int) ([]db.SettlementRecord, error)
}

// MCPServer wraps the MCP protocol server with clawwallet tools.
type MCPServer struct {
	server *mcp.Server
	daemon DaemonInfo
}

// New creates an MCP server with all clawwallet tools registered.
func New(version string, daemon DaemonInfo) *MCPServer {
	s := &MCPServer{
		daemon: daemon,
		server: mcp.NewServer(
			&mcp.Implementation{
				Name:    "clawwallet",
				Version: version,
			},
			&mcp.ServerOptions{
				Instructions: "ClawWallet ledger client. Shows the wallet's balance and confirmed history, renames the identity, sends transfers and runs mining rounds against the ledger backend.",
			},
		),
	}
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects.
func (s *MCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
