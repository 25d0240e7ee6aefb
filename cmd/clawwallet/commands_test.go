package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/gateway/gatewaytest"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/shopspring/decimal"
)

func run(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")
	cmd := RootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath, "--server", serverURL, "--user", "alice"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI(t *testing.T) {
	backend, srv := gatewaytest.NewServer()
	defer srv.Close()
	backend.Seed(ledger.Transaction{Sender: gatewaytest.RewardSender, Recipient: "alice", Amount: decimal.NewFromInt(30)})

	out, err := run(t, srv.URL, "balance")
	if err != nil || out != "alice: 30\n" {
		t.Errorf("balance = %q, %v", out, err)
	}

	out, err = run(t, srv.URL, "send", "bob", "12.5")
	if err != nil || !strings.Contains(out, "Transaction will be added to Block") {
		t.Errorf("send = %q, %v", out, err)
	}

	out, err = run(t, srv.URL, "mine")
	if err != nil || !strings.Contains(out, "balance 18.5") {
		t.Errorf("mine = %q, %v", out, err)
	}

	out, err = run(t, srv.URL, "history", "-n", "1")
	if err != nil || !strings.Contains(out, "3 transactions, balance 18.5") {
		t.Errorf("history = %q, %v", out, err)
	}
}

func TestCLI_Errors(t *testing.T) {
	backend, srv := gatewaytest.NewServer()
	defer srv.Close()
	backend.Seed(ledger.Transaction{Sender: gatewaytest.RewardSender, Recipient: "bob", Amount: decimal.NewFromInt(1)})

	if _, err := run(t, srv.URL, "send", "bob", "5"); !errors.Is(err, reconcile.ErrValidation) {
		t.Errorf("send over balance: err = %v, want ErrValidation", err)
	}
	if _, err := run(t, srv.URL, "send", "bob", "lots"); err == nil {
		t.Error("send with bad amount: expected error")
	}
	if _, err := run(t, srv.URL, "rename", "bob"); !errors.Is(err, gateway.ErrRejected) {
		t.Errorf("rename to taken name: err = %v, want ErrRejected", err)
	}
	if backend.Calls(gateway.PathSubmit) != 0 {
		t.Errorf("submit calls = %d, want 0", backend.Calls(gateway.PathSubmit))
	}
	if _, err := run(t, "http://127.0.0.1:1", "balance"); err == nil {
		t.Error("balance with backend down: expected error")
	}
}
