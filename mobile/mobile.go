// Package mobile provides gomobile-bindable functions for the ClawWallet daemon.
// All complex data is returned as JSON strings since gomobile cannot export
// maps, slices, or structs with unexported fields.
package mobile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/b0ase/path402/apps/clawwallet/internal/config"
	"github.com/b0ase/path402/apps/clawwallet/internal/daemon"
	"github.com/b0ase/path402/apps/clawwallet/internal/db"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/shopspring/decimal"

	// Required by gomobile bind at build time
	_ "golang.org/x/mobile/bind"
)

var (
	mu      sync.Mutex
	d       *daemon.Daemon
	running bool
	apiPort int
	version = "0.1.0"
)

// Start initialises and starts the ClawWallet daemon.
// configYAML may be empty to use defaults. dataDir is the path to the app's
// private files directory (e.g. Context.getFilesDir() + "/clawwallet").
func Start(configYAML string, dataDir string) error {
	mu.Lock()
	defer mu.Unlock()

	if running {
		return fmt.Errorf("already running")
	}

	cfg, err := config.LoadFromBytes([]byte(configYAML))
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	// No cgo toolchain in gomobile builds
	cfg.DB.Driver = db.DriverPureGo

	d, err = daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(); err != nil {
		d = nil
		return fmt.Errorf("start daemon: %w", err)
	}

	apiPort = d.APIPort()
	running = true
	return nil
}

// Stop gracefully shuts down the daemon.
func Stop() {
	mu.Lock()
	defer mu.Unlock()

	if d != nil {
		d.Stop()
		d = nil
	}
	apiPort = 0
	running = false
}

// IsRunning returns true if the daemon is currently running.
func IsRunning() bool {
	mu.Lock()
	defer mu.Unlock()
	return running
}

// current returns the running daemon without holding the lock across a
// backend call.
func current() *daemon.Daemon {
	mu.Lock()
	defer mu.Unlock()
	return d
}

func jsonString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return errJSON(err)
	}
	return string(data)
}

func errJSON(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

const notRunning = `{"error":"daemon not running"}`

// GetStatus returns daemon status as a JSON string.
func GetStatus() string {
	dm := current()
	if dm == nil {
		return `{"running":false}`
	}
	return jsonString(map[string]interface{}{
		"running":   true,
		"wallet_id": dm.WalletID(),
		"uptime_ms": dm.Uptime().Milliseconds(),
		"backend":   dm.BackendURL(),
		"wallet":    dm.Snapshot(),
	})
}

// GetWallet returns the current ledger snapshot as a JSON string.
func GetWallet() string {
	dm := current()
	if dm == nil {
		return notRunning
	}
	return jsonString(dm.Snapshot())
}

// Refresh re-fetches balance and history. Returns the snapshot, or
// {"error":"..."} if either fetch failed.
func Refresh() string {
	dm := current()
	if dm == nil {
		return notRunning
	}
	if err := dm.Engine().Refresh(context.Background()); err != nil {
		return errJSON(err)
	}
	return jsonString(dm.Snapshot())
}

// Rename asks the backend to rename the identity.
// Returns the snapshot or {"error":"..."}.
func Rename(username string) string {
	dm := current()
	if dm == nil {
		return notRunning
	}
	if err := dm.Engine().RenameIdentity(context.Background(), ledger.Identity(username)); err != nil {
		return errJSON(err)
	}
	return jsonString(dm.Snapshot())
}

// Send submits a transfer. amount is a decimal string.
// Returns JSON: {"message":"...","block_index":N} or {"error":"..."}.
func Send(recipient, amount string) string {
	dm := current()
	if dm == nil {
		return notRunning
	}
	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return errJSON(fmt.Errorf("amount %q is not a number", amount))
	}
	ack, err := dm.Engine().SendTransaction(context.Background(), ledger.Identity(recipient), amt)
	if err != nil {
		return errJSON(err)
	}
	return jsonString(ack)
}

// SetDraft stores the send form as typed.
func SetDraft(recipient, amount string) {
	if dm := current(); dm != nil {
		dm.Engine().SetDraft(reconcile.Draft{Recipient: recipient, Amount: amount})
	}
}

// GetDraft returns JSON: {"recipient":"...","amount":"..."}.
func GetDraft() string {
	dm := current()
	if dm == nil {
		return notRunning
	}
	return jsonString(dm.Engine().Draft())
}

// SubmitDraft sends the stored form. The draft is cleared only on success.
func SubmitDraft() string {
	dm := current()
	if dm == nil {
		return notRunning
	}
	ack, err := dm.Engine().SubmitDraft(context.Background())
	if err != nil {
		return errJSON(err)
	}
	return jsonString(ack)
}

// Mine runs one mining round. Blocks until the backend answers.
// Returns JSON: {"settlement":{...},"wallet":{...}} or {"error":"..."}.
func Mine() string {
	dm := current()
	if dm == nil {
		return notRunning
	}
	s, err := dm.Engine().StartMining(context.Background())
	if err != nil {
		return errJSON(err)
	}
	return jsonString(map[string]interface{}{
		"settlement": s,
		"wallet":     dm.Snapshot(),
	})
}

// GetSettlements returns recent settlements as a JSON array, or "[]".
func GetSettlements(limit int) string {
	dm := current()
	if dm == nil {
		return `[]`
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}
	recs, err := dm.RecentSettlements(limit)
	if err != nil || len(recs) == 0 {
		return `[]`
	}
	return jsonString(recs)
}

// GetAPIPort returns the port the HTTP API is listening on.
func GetAPIPort() int {
	mu.Lock()
	defer mu.Unlock()
	return apiPort
}

// GetVersion returns the ClawWallet version string.
func GetVersion() string {
	return version
}
