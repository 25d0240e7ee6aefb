package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
)

// --- Input types ---

type emptyInput struct{}

type historyInput struct {
	Limit int `json:"limit" jsonschema:"max number of most recent transactions to show (0 = all)"`
}

type renameInput struct {
	Username string `json:"username" jsonschema:"the new identity to register with the ledger backend"`
}

type sendInput struct {
	Recipient string `json:"recipient" jsonschema:"identity to send to"`
	Amount    string `json:"amount" jsonschema:"decimal amount, must be positive and not exceed the balance"`
}

type settlementsInput struct {
	Limit int `json:"limit" jsonschema:"max number of settlements to return (default 10)"`
}

// registerTools adds all clawwallet MCP tools to the server.
func (s *MCPServer) registerTools() {
	// Read-only tools

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clawwallet_status",
		Description: "Wallet status: identity, balance, mining state, backend and uptime",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clawwallet_history",
		Description: "Confirmed transactions involving this wallet, oldest first",
	}, s.handleHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clawwallet_settlements",
		Description: "Recent mining settlements recorded by this wallet",
	}, s.handleSettlements)

	// Write tools

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clawwallet_refresh",
		Description: "Re-fetch balance and history from the ledger backend",
	}, s.handleRefresh)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clawwallet_rename",
		Description: "Rename the wallet identity; applied locally only if the backend confirms",
	}, s.handleRename)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clawwallet_send",
		Description: "Submit a transfer. It is confirmed, and the balance changes, only when a later mining round includes it",
	}, s.handleSend)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clawwallet_mine",
		Description: "Run one mining round and merge the resulting block into the wallet",
	}, s.handleMine)
}

// --- Handlers ---

func (s *MCPServer) handleStatus(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	snap := s.daemon.Engine().Store().Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "# ClawWallet Status\n\n")
	fmt.Fprintf(&b, "**Identity:** `%s`\n", snap.Identity)
	fmt.Fprintf(&b, "**Balance:** %s%s\n", snap.Balance, loadedMark(snap.BalanceLoaded))
	fmt.Fprintf(&b, "**Transactions:** %d%s\n", len(snap.Transactions), loadedMark(snap.TransactionsLoaded))
	fmt.Fprintf(&b, "**Mining:** %s\n\n", snap.Mining)
	fmt.Fprintf(&b, "- Backend: %s\n", s.daemon.BackendURL())
	fmt.Fprintf(&b, "- Wallet ID: `%s`\n", s.daemon.WalletID())
	fmt.Fprintf(&b, "- Uptime: %s\n", s.daemon.Uptime().Round(1e9))

	if d := s.daemon.Engine().Draft(); d != (reconcile.Draft{}) {
		fmt.Fprintf(&b, "\n## Draft\n- To: `%s`\n- Amount: %s\n", d.Recipient, d.Amount)
	}

	return textResult(b.String()), nil, nil
}

func loadedMark(loaded bool) string {
	if loaded {
		return ""
	}
	return " (not yet loaded)"
}

func (s *MCPServer) handleHistory(_ context.Context, _ *mcp.CallToolRequest, input historyInput) (*mcp.CallToolResult, any, error) {
	snap := s.daemon.Engine().Store().Snapshot()
	txs := snap.Transactions
	if input.Limit > 0 && len(txs) > input.Limit {
		txs = txs[len(txs)-input.Limit:]
	}
	if len(txs) == 0 {
		return textResult("No confirmed transactions."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# History for `%s` (%d of %d)\n\n", snap.Identity, len(txs), len(snap.Transactions))
	b.WriteString(txTable(snap.Identity, txs))
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleSettlements(_ context.Context, _ *mcp.CallToolRequest, input settlementsInput) (*mcp.CallToolResult, any, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	recs, err := s.daemon.RecentSettlements(limit)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil, nil
	}
	if len(recs) == 0 {
		return textResult("No settlements recorded yet."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Recent Settlements (%d)\n\n", len(recs))
	fmt.Fprintf(&b, "| Block | Identity | Applied | Observed | Delta |\n")
	fmt.Fprintf(&b, "|-------|----------|---------|----------|-------|\n")
	for _, r := range recs {
		block := "-"
		if r.BlockIndex != nil {
			block = fmt.Sprint(*r.BlockIndex)
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s |\n", block, r.Identity, len(r.Applied), r.Observed, r.Delta)
	}
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleRefresh(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	e := s.daemon.Engine()
	if err := e.Refresh(ctx); err != nil {
		return errResult(fmt.Sprintf("refresh incomplete: %v", err)), nil, nil
	}
	snap := e.Store().Snapshot()
	return textResult(fmt.Sprintf("Refreshed `%s`: balance %s, %d transactions.",
		snap.Identity, snap.Balance, len(snap.Transactions))), nil, nil
}

func (s *MCPServer) handleRename(ctx context.Context, _ *mcp.CallToolRequest, input renameInput) (*mcp.CallToolResult, any, error) {
	e := s.daemon.Engine()
	old := e.Store().Identity()
	if err := e.RenameIdentity(ctx, ledger.Identity(input.Username)); err != nil {
		return errResult(fmt.Sprintf("rename failed, identity is still `%s`: %v", old, err)), nil, nil
	}
	return textResult(fmt.Sprintf("Identity renamed `%s` -> `%s`.", old, e.Store().Identity())), nil, nil
}

func (s *MCPServer) handleSend(ctx context.Context, _ *mcp.CallToolRequest, input sendInput) (*mcp.CallToolResult, any, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(input.Amount))
	if err != nil {
		return errResult(fmt.Sprintf("amount %q is not a number", input.Amount)), nil, nil
	}
	ack, err := s.daemon.Engine().SendTransaction(ctx, ledger.Identity(input.Recipient), amount)
	if err != nil {
		return errResult(fmt.Sprintf("send failed: %v", err)), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Submitted %s to `%s`.\n\n", amount, input.Recipient)
	fmt.Fprintf(&b, "- Backend: %s\n", ack.Message)
	if ack.BlockIndex > 0 {
		fmt.Fprintf(&b, "- Queued for block %d\n", ack.BlockIndex)
	}
	b.WriteString("\n> Not confirmed yet. The balance changes when a mining round includes it.")
	return textResult(b.String()), nil, nil
}

func (s *MCPServer) handleMine(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	e := s.daemon.Engine()
	settlement, err := e.StartMining(ctx)
	if errors.Is(err, reconcile.ErrMiningInFlight) {
		return errResult("a mining round is already running"), nil, nil
	}
	if err != nil {
		return errResult(fmt.Sprintf("mining failed, wallet unchanged: %v", err)), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Block Settled\n\n")
	fmt.Fprintf(&b, "- Transactions in block: %d\n", settlement.Observed)
	fmt.Fprintf(&b, "- Involving `%s`: %d\n", settlement.Identity, len(settlement.Applied))
	fmt.Fprintf(&b, "- Balance change: %s\n", settlement.Delta)
	fmt.Fprintf(&b, "- New balance: %s\n", e.Store().Balance())
	if len(settlement.Applied) > 0 {
		b.WriteString("\n")
		b.WriteString(txTable(settlement.Identity, settlement.Applied))
	}
	return textResult(b.String()), nil, nil
}

func txTable(id ledger.Identity, txs []ledger.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| From | To | Amount |\n")
	fmt.Fprintf(&b, "|------|----|--------|\n")
	for _, tx := range txs {
		sign := ""
		switch {
		case tx.Sender == id && tx.Recipient == id:
		case tx.Sender == id:
			sign = "-"
		case tx.Recipient == id:
			sign = "+"
		}
		fmt.Fprintf(&b, "| %s | %s | %s%s |\n", tx.Sender, tx.Recipient, sign, tx.Amount)
	}
	return b.String()
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
