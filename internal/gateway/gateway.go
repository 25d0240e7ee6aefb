// Package gateway is the typed contract to the ledger backend. Every call is
// one request/response round-trip with no retries; failures come back as
// *Error values classified by Kind.
package gateway

import (
	"context"

	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/shopspring/decimal"
)

// Backend paths. These and the payload keys are the compatibility surface.
const (
	PathBalance      = "/user/balance"
	PathTransactions = "/user/transactions"
	PathChange       = "/user/change"
	PathSubmit       = "/transaction/new"
	PathMine         = "/mine"
)

// Acknowledgement is the backend's receipt for a submitted transaction. It
// does not mean the transaction is confirmed; that only happens when a
// mining round includes it.
type Acknowledgement struct {
	Message    string `json:"message"`
	BlockIndex int    `json:"block_index,omitempty"` // block the transaction is queued for, 0 if not stated
}

// MineResult is what one mining round returns.
type MineResult struct {
	Index        int                  `json:"index,omitempty"`
	Message      string               `json:"message,omitempty"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// Gateway is the set of backend operations the reconciliation engine needs.
type Gateway interface {
	FetchBalance(ctx context.Context, id ledger.Identity) (decimal.Decimal, error)
	FetchTransactions(ctx context.Context, id ledger.Identity) ([]ledger.Transaction, error)
	// ChangeIdentity reports whether the backend applied the rename. A
	// transport failure says nothing about whether it did.
	ChangeIdentity(ctx context.Context, from, to ledger.Identity) (bool, error)
	SubmitTransaction(ctx context.Context, sender, recipient ledger.Identity, amount decimal.Decimal) (*Acknowledgement, error)
	// TriggerMine blocks until the backend has mined a block.
	TriggerMine(ctx context.Context, id ledger.Identity) (*MineResult, error)
}
