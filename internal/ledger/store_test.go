package ledger

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tx(sender, recipient Identity, amount string) Transaction {
	return Transaction{Sender: sender, Recipient: recipient, Amount: d(amount)}
}

func TestNewStore_Placeholder(t *testing.T) {
	s := NewStore("melqui")
	snap := s.Snapshot()
	if snap.Identity != "melqui" {
		t.Errorf("identity = %s, want melqui", snap.Identity)
	}
	if !snap.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", snap.Balance)
	}
	if len(snap.Transactions) != 0 {
		t.Errorf("transactions = %d, want 0", len(snap.Transactions))
	}
	if snap.Mining != MiningIdle {
		t.Errorf("mining = %s, want idle", snap.Mining)
	}
	if snap.BalanceLoaded || snap.TransactionsLoaded {
		t.Error("fresh store should not report loaded values")
	}
}

func TestInitialize_Resets(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceSnapshot(d("50"), []Transaction{tx("bob", "alice", "50")})
	s.TransitionMining(MiningIdle, MiningInFlight)

	s.Initialize("carol")
	snap := s.Snapshot()
	if snap.Identity != "carol" || !snap.Balance.IsZero() || len(snap.Transactions) != 0 || snap.Mining != MiningIdle {
		t.Errorf("Initialize did not reset: %+v", snap)
	}
}

func TestReload_KeepsMiningState(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceSnapshot(d("50"), []Transaction{tx("bob", "alice", "50")})
	s.TransitionMining(MiningIdle, MiningInFlight)

	s.Reload("carol")
	snap := s.Snapshot()
	if snap.Identity != "carol" || !snap.Balance.IsZero() || len(snap.Transactions) != 0 {
		t.Errorf("Reload did not reset the ledger: %+v", snap)
	}
	if snap.BalanceLoaded || snap.TransactionsLoaded {
		t.Errorf("loaded flags survived Reload: %+v", snap)
	}
	if snap.Mining != MiningInFlight {
		t.Errorf("mining = %s, want in_flight", snap.Mining)
	}
	if !s.TransitionMining(MiningInFlight, MiningSettling) {
		t.Error("in-flight round lost its state")
	}
}

func TestReplaceSnapshot_FullReplace(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceSnapshot(d("10"), []Transaction{tx("bob", "alice", "10")})
	s.ReplaceSnapshot(d("3"), []Transaction{tx("bob", "alice", "5"), tx("alice", "carol", "2")})

	snap := s.Snapshot()
	if !snap.Balance.Equal(d("3")) {
		t.Errorf("balance = %s, want 3", snap.Balance)
	}
	if len(snap.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(snap.Transactions))
	}
	if snap.Transactions[1].Recipient != "carol" {
		t.Errorf("order not preserved: %v", snap.Transactions)
	}
}

func TestReplaceSnapshot_CopiesInput(t *testing.T) {
	s := NewStore("alice")
	in := []Transaction{tx("bob", "alice", "10")}
	s.ReplaceTransactions(in)
	in[0].Amount = d("999")

	if got := s.Snapshot().Transactions[0].Amount; !got.Equal(d("10")) {
		t.Errorf("store aliased caller slice: amount = %s", got)
	}
}

func TestPartialReplace(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceTransactions([]Transaction{tx("bob", "alice", "7")})

	snap := s.Snapshot()
	if snap.BalanceLoaded {
		t.Error("balance should still be the placeholder")
	}
	if !snap.TransactionsLoaded || len(snap.Transactions) != 1 {
		t.Errorf("transactions not replaced: %+v", snap)
	}

	s.ReplaceBalance(d("7"))
	if !s.Balance().Equal(d("7")) {
		t.Errorf("balance = %s, want 7", s.Balance())
	}
}

func TestRenameIdentity_LeavesLedger(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceSnapshot(d("100"), []Transaction{tx("bob", "alice", "100")})
	s.RenameIdentity("alicia")

	snap := s.Snapshot()
	if snap.Identity != "alicia" {
		t.Errorf("identity = %s, want alicia", snap.Identity)
	}
	if !snap.Balance.Equal(d("100")) || len(snap.Transactions) != 1 {
		t.Errorf("rename touched the ledger: %+v", snap)
	}
}

func TestApplyMiningSettlement_Scenario(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceBalance(d("100"))

	res := s.ApplyMiningSettlement([]Transaction{
		tx("alice", "bob", "20"),
		tx("carol", "dave", "5"),
	})

	if !s.Balance().Equal(d("80")) {
		t.Errorf("balance = %s, want 80", s.Balance())
	}
	txs := s.Snapshot().Transactions
	if len(txs) != 1 || !txs[0].Equal(tx("alice", "bob", "20")) {
		t.Errorf("transactions = %v, want [alice->bob:20]", txs)
	}
	if !res.Delta.Equal(d("-20")) || res.Observed != 2 || len(res.Applied) != 1 {
		t.Errorf("settlement = %+v", res)
	}
}

func TestApplyMiningSettlement_DeltaMatchesFilteredSum(t *testing.T) {
	cases := []struct {
		name     string
		observed []Transaction
		delta    string
		applied  int
	}{
		{"empty", nil, "0", 0},
		{"unrelated", []Transaction{tx("x", "y", "4")}, "0", 0},
		{"incoming", []Transaction{tx("0", "alice", "1"), tx("bob", "alice", "2.5")}, "3.5", 2},
		{"outgoing", []Transaction{tx("alice", "bob", "0.25")}, "-0.25", 1},
		{"self transfer", []Transaction{tx("alice", "alice", "9")}, "0", 1},
		{"mixed", []Transaction{
			tx("alice", "bob", "3"),
			tx("carol", "dave", "100"),
			tx("bob", "alice", "1"),
			tx("0", "alice", "1"),
		}, "-1", 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore("alice")
			s.ReplaceBalance(d("10"))
			res := s.ApplyMiningSettlement(tc.observed)

			if !res.Delta.Equal(d(tc.delta)) {
				t.Errorf("delta = %s, want %s", res.Delta, tc.delta)
			}
			if want := d("10").Add(d(tc.delta)); !s.Balance().Equal(want) {
				t.Errorf("balance = %s, want %s", s.Balance(), want)
			}
			if got := len(s.Snapshot().Transactions); got != tc.applied {
				t.Errorf("appended = %d, want %d", got, tc.applied)
			}
		})
	}
}

func TestApplyMiningSettlement_AppendsAfterHistory(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceSnapshot(d("5"), []Transaction{tx("bob", "alice", "5")})
	s.ApplyMiningSettlement([]Transaction{tx("alice", "carol", "1"), tx("dave", "alice", "2")})

	txs := s.Snapshot().Transactions
	want := []Transaction{tx("bob", "alice", "5"), tx("alice", "carol", "1"), tx("dave", "alice", "2")}
	if len(txs) != len(want) {
		t.Fatalf("transactions = %v", txs)
	}
	for i := range want {
		if !txs[i].Equal(want[i]) {
			t.Errorf("tx[%d] = %v, want %v", i, txs[i], want[i])
		}
	}
	if !s.Balance().Equal(d("6")) {
		t.Errorf("balance = %s, want 6", s.Balance())
	}
}

func TestTransitionMining(t *testing.T) {
	s := NewStore("alice")
	if !s.TransitionMining(MiningIdle, MiningInFlight) {
		t.Fatal("idle -> in_flight refused")
	}
	if s.TransitionMining(MiningIdle, MiningInFlight) {
		t.Error("second idle -> in_flight should be refused")
	}
	if !s.TransitionMining(MiningInFlight, MiningSettling) {
		t.Error("in_flight -> settling refused")
	}
	if !s.TransitionMining(MiningSettling, MiningIdle) {
		t.Error("settling -> idle refused")
	}
	if s.MiningState() != MiningIdle {
		t.Errorf("state = %s, want idle", s.MiningState())
	}
}

func TestSubscribe_NotifiedOnChange(t *testing.T) {
	s := NewStore("alice")
	var got []Snapshot
	s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	s.ReplaceBalance(d("1"))
	s.RenameIdentity("alice") // no change
	s.TransitionMining(MiningSettling, MiningIdle)
	s.ApplyMiningSettlement([]Transaction{tx("x", "y", "1")})
	s.RenameIdentity("bob")

	if len(got) != 2 {
		t.Fatalf("notifications = %d, want 2", len(got))
	}
	if got[1].Identity != "bob" || !got[1].Balance.Equal(d("1")) {
		t.Errorf("last snapshot = %+v", got[1])
	}
}

func TestApplyMiningSettlement_Concurrent(t *testing.T) {
	s := NewStore("alice")
	s.ReplaceBalance(d("0"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ApplyMiningSettlement([]Transaction{tx("0", "alice", "1"), tx("alice", "bob", "0.5")})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if !snap.Balance.Equal(d("25")) {
		t.Errorf("balance = %s, want 25", snap.Balance)
	}
	if len(snap.Transactions) != 100 {
		t.Errorf("transactions = %d, want 100", len(snap.Transactions))
	}
	if !NetFor("alice", snap.Transactions).Equal(snap.Balance) {
		t.Error("balance diverged from the history it accumulated")
	}
}
