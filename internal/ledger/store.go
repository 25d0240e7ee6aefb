package ledger

import (
	"github.com/sasha-s/go-deadlock"
	"github.com/shopspring/decimal"
)

// Listener is called with a fresh snapshot after every committed change.
type Listener func(Snapshot)

// Store owns the session's ledger view. All mutations go through its methods,
// each of which is applied under one lock so a reader never sees a
// half-applied update. Balance is an accumulator seeded by the last balance
// snapshot; settlements adjust it incrementally and never recompute it from
// the transaction history.
type Store struct {
	mu                 deadlock.RWMutex
	identity           Identity
	balance            decimal.Decimal
	transactions       []Transaction
	mining             MiningState
	balanceLoaded      bool
	transactionsLoaded bool

	listenersMu deadlock.Mutex
	listeners   []Listener
}

// NewStore creates a store holding the placeholder identity.
func NewStore(identity Identity) *Store {
	s := &Store{}
	s.reset(identity)
	return s
}

// Initialize resets the store to a fresh session for identity: zero balance,
// no transactions, mining idle.
func (s *Store) Initialize(identity Identity) {
	s.mu.Lock()
	s.reset(identity)
	s.mining = MiningIdle
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Reload resets identity, balance and history to placeholders but keeps the
// mining state, so a round already in flight stays the only one.
func (s *Store) Reload(identity Identity) {
	s.mu.Lock()
	s.reset(identity)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) reset(identity Identity) {
	s.identity = identity
	s.balance = decimal.Zero
	s.transactions = nil
	s.balanceLoaded = false
	s.transactionsLoaded = false
}

// ReplaceSnapshot overwrites balance and transactions together.
func (s *Store) ReplaceSnapshot(balance decimal.Decimal, txs []Transaction) {
	s.mutate(func() bool {
		s.balance = balance
		s.balanceLoaded = true
		s.transactions = cloneTransactions(txs)
		s.transactionsLoaded = true
		return true
	})
}

// ReplaceBalance overwrites the balance baseline only.
func (s *Store) ReplaceBalance(balance decimal.Decimal) {
	s.mutate(func() bool {
		s.balance = balance
		s.balanceLoaded = true
		return true
	})
}

// ReplaceTransactions overwrites the transaction history only.
func (s *Store) ReplaceTransactions(txs []Transaction) {
	s.mutate(func() bool {
		s.transactions = cloneTransactions(txs)
		s.transactionsLoaded = true
		return true
	})
}

// RenameIdentity swaps the identity. Balance and transactions are left as
// they are and describe the old identity until the caller refreshes them.
func (s *Store) RenameIdentity(identity Identity) {
	s.mutate(func() bool {
		if s.identity == identity {
			return false
		}
		s.identity = identity
		return true
	})
}

// ApplyMiningSettlement merges a completed mining round. Reading the
// identity, filtering, computing the delta and updating balance and history
// happen as one step.
func (s *Store) ApplyMiningSettlement(observed []Transaction) Settlement {
	var out Settlement
	s.mutate(func() bool {
		applied, delta := Settle(s.identity, observed)
		s.transactions = append(s.transactions, applied...)
		s.balance = s.balance.Add(delta)
		out = Settlement{
			Identity: s.identity,
			Applied:  cloneTransactions(applied),
			Observed: len(observed),
			Delta:    delta,
		}
		return len(applied) > 0
	})
	return out
}

// TransitionMining moves the mining state from `from` to `to` and reports
// whether it did. It fails, changing nothing, when the current state is not
// `from`.
func (s *Store) TransitionMining(from, to MiningState) bool {
	ok := false
	s.mutate(func() bool {
		if s.mining != from {
			return false
		}
		s.mining = to
		ok = true
		return from != to
	})
	return ok
}

// Identity returns the current identity.
func (s *Store) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Balance returns the current balance.
func (s *Store) Balance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// MiningState returns the current mining state.
func (s *Store) MiningState() MiningState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mining
}

// Snapshot returns a copy of the whole store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after each change. Listeners
// run on the mutating goroutine, after the lock is released.
func (s *Store) Subscribe(fn Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// mutate applies fn under the write lock. fn reports whether it changed
// anything; listeners are only told about real changes.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if changed {
		s.notify(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Identity:           s.identity,
		Balance:            s.balance,
		Transactions:       cloneTransactions(s.transactions),
		Mining:             s.mining,
		BalanceLoaded:      s.balanceLoaded,
		TransactionsLoaded: s.transactionsLoaded,
	}
}

func (s *Store) notify(snap Snapshot) {
	s.listenersMu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func cloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}
