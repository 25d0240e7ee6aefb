package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/b0ase/path402/apps/clawwallet/internal/db"
	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/gateway/gatewaytest"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
)

type fakeDaemon struct {
	engine      *reconcile.Engine
	settlements []db.SettlementRecord
}

func (f *fakeDaemon) WalletID() string          { return "wallet-1" }
func (f *fakeDaemon) Uptime() time.Duration     { return time.Minute }
func (f *fakeDaemon) BackendURL() string        { return "http://ledger.test" }
func (f *fakeDaemon) Engine() *reconcile.Engine { return f.engine }

func (f *fakeDaemon) RecentSettlements(limit int) ([]db.SettlementRecord, error) {
	return f.settlements, nil
}

func newTestServer(t *testing.T) (*MCPServer, *gatewaytest.Backend) {
	t.Helper()
	backend, srv := gatewaytest.NewServer()
	t.Cleanup(srv.Close)
	backend.Seed(ledger.Transaction{Sender: gatewaytest.RewardSender, Recipient: "alice", Amount: decimal.NewFromInt(50)})

	engine := reconcile.New(ledger.NewStore("alice"), gateway.NewHTTPClient(srv.URL, 5*time.Second), nil)
	if err := engine.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return New("test", &fakeDaemon{engine: engine}), backend
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %v", res.Content)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] = %T", res.Content[0])
	}
	return tc.Text
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, err := s.handleStatus(context.Background(), nil, emptyInput{})
	if err != nil {
		t.Fatal(err)
	}
	out := text(t, res)
	for _, want := range []string{"`alice`", "**Balance:** 50", "**Mining:** idle", "http://ledger.test"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestSendAndMine(t *testing.T) {
	s, backend := newTestServer(t)
	ctx := context.Background()

	res, _, _ := s.handleSend(ctx, nil, sendInput{Recipient: "bob", Amount: "10"})
	if res.IsError {
		t.Fatalf("send: %s", text(t, res))
	}
	if len(backend.Pending()) != 1 {
		t.Errorf("pending = %d, want 1", len(backend.Pending()))
	}

	res, _, _ = s.handleMine(ctx, nil, emptyInput{})
	if res.IsError {
		t.Fatalf("mine: %s", text(t, res))
	}
	out := text(t, res)
	if !strings.Contains(out, "New balance: 41") {
		t.Errorf("mine output:\n%s", out)
	}
	if !strings.Contains(out, "| alice | bob | -10 |") {
		t.Errorf("mine table missing the transfer:\n%s", out)
	}

	res, _, _ = s.handleHistory(ctx, nil, historyInput{Limit: 2})
	if out := text(t, res); !strings.Contains(out, "(2 of 3)") {
		t.Errorf("history output:\n%s", out)
	}
}

func TestSend_Errors(t *testing.T) {
	s, backend := newTestServer(t)
	ctx := context.Background()

	for _, in := range []sendInput{
		{Recipient: "bob", Amount: "ten"},
		{Recipient: "bob", Amount: "51"},
		{Recipient: "", Amount: "1"},
	} {
		res, _, _ := s.handleSend(ctx, nil, in)
		if !res.IsError {
			t.Errorf("send %+v: expected error result", in)
		}
	}
	if backend.Calls(gateway.PathSubmit) != 0 {
		t.Errorf("submit calls = %d, want 0", backend.Calls(gateway.PathSubmit))
	}
}

func TestRename_Refused(t *testing.T) {
	s, backend := newTestServer(t)
	backend.RefuseRename("mallory")

	res, _, _ := s.handleRename(context.Background(), nil, renameInput{Username: "mallory"})
	if !res.IsError {
		t.Fatal("expected error result")
	}
	if out := text(t, res); !strings.Contains(out, "still `alice`") {
		t.Errorf("output = %s", out)
	}
}

func TestSettlements(t *testing.T) {
	s, _ := newTestServer(t)

	res, _, _ := s.handleSettlements(context.Background(), nil, settlementsInput{})
	if out := text(t, res); !strings.Contains(out, "No settlements") {
		t.Errorf("empty output = %s", out)
	}

	block := 4
	s.daemon.(*fakeDaemon).settlements = []db.SettlementRecord{
		{ID: "x", Identity: "alice", Delta: decimal.NewFromInt(-9), Observed: 2, BlockIndex: &block,
			Applied: []ledger.Transaction{{Sender: "alice", Recipient: "bob", Amount: decimal.NewFromInt(10)}}},
	}
	res, _, _ = s.handleSettlements(context.Background(), nil, settlementsInput{Limit: 5})
	if out := text(t, res); !strings.Contains(out, "| 4 | alice | 1 | 2 | -9 |") {
		t.Errorf("output:\n%s", out)
	}
}
