package db

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) func() {
	t.Helper()
	return setupTestDBWith(t, DriverCGo)
}

func setupTestDBWith(t *testing.T, driver string) func() {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	if err := Open(driver, path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return func() {
		Close()
		os.Remove(path)
	}
}

func tx(sender, recipient ledger.Identity, amount string) ledger.Transaction {
	return ledger.Transaction{Sender: sender, Recipient: recipient, Amount: decimal.RequireFromString(amount)}
}

func TestOpenClose(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	if DB() == nil {
		t.Fatal("DB() returned nil after Open")
	}
}

func TestOpen_PureGoDriver(t *testing.T) {
	cleanup := setupTestDBWith(t, DriverPureGo)
	defer cleanup()

	if err := SetIdentity("alice"); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	id, err := GetIdentity()
	if err != nil || id != "alice" {
		t.Errorf("GetIdentity = %q, %v", id, err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if err := Open("postgres", filepath.Join(t.TempDir(), "x.db")); err == nil {
		Close()
		t.Fatal("expected error for unknown driver")
	}
}

func TestGetWalletID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	if err := Open(DriverCGo, path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := GetWalletID()
	if err != nil {
		t.Fatalf("GetWalletID: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("wallet_id = %q, want a uuid", id)
	}
	Close()

	// Reopening keeps the id
	if err := Open(DriverCGo, path); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer Close()
	again, _ := GetWalletID()
	if again != id {
		t.Errorf("wallet_id after reopen = %q, want %q", again, id)
	}
}

func TestConfigGetSet(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	if err := SetConfig("test_key", "test_value"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	val, err := GetConfig("test_key")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if val != "test_value" {
		t.Errorf("GetConfig = %q, want %q", val, "test_value")
	}

	// Overwrite
	SetConfig("test_key", "new_value")
	val, _ = GetConfig("test_key")
	if val != "new_value" {
		t.Errorf("after overwrite: %q, want %q", val, "new_value")
	}
}

func TestGetIdentity_Unset(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	id, err := GetIdentity()
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if id != "" {
		t.Errorf("identity = %q, want empty", id)
	}
}

func TestSettlementRoundTrip(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	s := ledger.Settlement{
		Identity: "alice",
		Applied:  []ledger.Transaction{tx("alice", "bob", "20"), tx("0", "alice", "1.5")},
		Observed: 3,
		Delta:    decimal.RequireFromString("-18.5"),
	}
	id, err := InsertSettlement(s, 7)
	if err != nil {
		t.Fatalf("InsertSettlement: %v", err)
	}
	if _, err := InsertSettlement(ledger.Settlement{Identity: "alice", Observed: 1, Delta: decimal.Zero}, 0); err != nil {
		t.Fatalf("InsertSettlement (empty): %v", err)
	}

	n, _ := GetSettlementCount()
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	recs, err := GetRecentSettlements(10)
	if err != nil {
		t.Fatalf("GetRecentSettlements: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d settlements, want 2", len(recs))
	}
	// newest first
	if recs[0].BlockIndex != nil || len(recs[0].Applied) != 0 {
		t.Errorf("newest = %+v, want the empty settlement", recs[0])
	}
	got := recs[1]
	if got.ID != id || got.Identity != "alice" || got.Observed != 3 {
		t.Errorf("settlement = %+v", got)
	}
	if !got.Delta.Equal(s.Delta) {
		t.Errorf("delta = %s, want %s", got.Delta, s.Delta)
	}
	if got.BlockIndex == nil || *got.BlockIndex != 7 {
		t.Errorf("block index = %v, want 7", got.BlockIndex)
	}
	if len(got.Applied) != 2 {
		t.Fatalf("applied = %v", got.Applied)
	}
	for i := range s.Applied {
		if !got.Applied[i].Equal(s.Applied[i]) {
			t.Errorf("applied[%d] = %v, want %v", i, got.Applied[i], s.Applied[i])
		}
	}

	recs, _ = GetRecentSettlements(1)
	if len(recs) != 1 {
		t.Errorf("limit 1 returned %d", len(recs))
	}
}

func TestJournal(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	var j Journal
	if err := j.RecordSubmission("alice", "bob", decimal.RequireFromString("2.5"),
		&gateway.Acknowledgement{Message: "Transaction will be added to Block 3", BlockIndex: 3}); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}
	subs, err := GetRecentSubmissions(10)
	if err != nil {
		t.Fatalf("GetRecentSubmissions: %v", err)
	}
	if len(subs) != 1 || subs[0].Recipient != "bob" || !subs[0].Amount.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("submissions = %+v", subs)
	}
	if subs[0].BlockIndex == nil || *subs[0].BlockIndex != 3 {
		t.Errorf("block index = %v, want 3", subs[0].BlockIndex)
	}

	if err := j.RecordRename("alice", "alicia"); err != nil {
		t.Fatalf("RecordRename: %v", err)
	}
	renames, _ := GetRenames()
	if len(renames) != 1 || renames[0].From != "alice" || renames[0].To != "alicia" {
		t.Errorf("renames = %+v", renames)
	}
	if id, _ := GetIdentity(); id != "alicia" {
		t.Errorf("identity = %q, want alicia", id)
	}

	if err := j.RecordSettlement(ledger.Settlement{Identity: "alicia", Delta: decimal.NewFromInt(1),
		Applied: []ledger.Transaction{tx("0", "alicia", "1")}, Observed: 1}, 4); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}
	if n, _ := GetSettlementCount(); n != 1 {
		t.Errorf("settlement count = %d, want 1", n)
	}
}

func TestJournal_WritesRacingClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	if err := Open(DriverCGo, path); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var (
		j       Journal
		wg      sync.WaitGroup
		okMu    sync.Mutex
		written int
	)
	settlement := ledger.Settlement{Identity: "alice", Delta: decimal.NewFromInt(1),
		Applied: []ledger.Transaction{tx("0", "alice", "1")}, Observed: 1}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(block int) {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				err := j.RecordSettlement(settlement, block)
				switch {
				case err == nil:
					okMu.Lock()
					written++
					okMu.Unlock()
				case errors.Is(err, errClosed):
				default:
					t.Errorf("RecordSettlement: %v", err)
				}
			}
		}(i)
	}
	Close()
	wg.Wait()

	if err := j.RecordSettlement(settlement, 99); !errors.Is(err, errClosed) {
		t.Errorf("write after Close: err = %v, want errClosed", err)
	}

	if err := Open(DriverCGo, path); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer Close()
	n, err := GetSettlementCount()
	if err != nil {
		t.Fatalf("GetSettlementCount: %v", err)
	}
	if n != written {
		t.Errorf("settlement count = %d, want %d successful writes", n, written)
	}
}
