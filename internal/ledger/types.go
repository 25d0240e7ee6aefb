// Package ledger holds the client's view of the shared ledger: the current
// identity, its balance, the confirmed transactions it took part in and the
// state of the mining round, if any.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Identity is the handle that keys balance and transaction lookups on the server.
type Identity string

// Transaction is a confirmed transfer as reported by the server. It has no
// identifier; two transfers with the same parties and amount are only told
// apart by their position in a sequence.
type Transaction struct {
	Sender    Identity        `json:"sender"`
	Recipient Identity        `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// Involves reports whether id is the sender or the recipient of tx.
func (tx Transaction) Involves(id Identity) bool {
	return tx.Sender == id || tx.Recipient == id
}

// Equal compares parties and amount by value.
func (tx Transaction) Equal(other Transaction) bool {
	return tx.Sender == other.Sender && tx.Recipient == other.Recipient && tx.Amount.Equal(other.Amount)
}

func (tx Transaction) String() string {
	return fmt.Sprintf("%s->%s:%s", tx.Sender, tx.Recipient, tx.Amount.String())
}

// MiningState tracks the single mining round a session may have open.
type MiningState int

const (
	MiningIdle MiningState = iota
	MiningInFlight
	MiningSettling
)

func (s MiningState) String() string {
	switch s {
	case MiningIdle:
		return "idle"
	case MiningInFlight:
		return "in_flight"
	case MiningSettling:
		return "settling"
	default:
		return fmt.Sprintf("MiningState(%d)", int(s))
	}
}

// MarshalText renders the state as its lower-case name in JSON payloads.
func (s MiningState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of the store. It shares no memory with the
// store and may be handed to renderers freely.
type Snapshot struct {
	Identity           Identity        `json:"identity"`
	Balance            decimal.Decimal `json:"balance"`
	Transactions       []Transaction   `json:"transactions"`
	Mining             MiningState     `json:"mining"`
	BalanceLoaded      bool            `json:"balance_loaded"`
	TransactionsLoaded bool            `json:"transactions_loaded"`
}

// Settlement is the outcome of merging one mining round.
type Settlement struct {
	Identity Identity        `json:"identity"`
	Applied  []Transaction   `json:"applied"`
	Observed int             `json:"observed"`
	Delta    decimal.Decimal `json:"delta"`
}
