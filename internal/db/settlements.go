package db

import (
	"database/sql"
	"fmt"

	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementRecord is a stored mining settlement.
type SettlementRecord struct {
	ID         string               `json:"id"`
	Identity   ledger.Identity      `json:"identity"`
	Delta      decimal.Decimal      `json:"delta"`
	Observed   int                  `json:"observed"`
	BlockIndex *int                 `json:"block_index,omitempty"`
	Applied    []ledger.Transaction `json:"applied"`
	CreatedAt  int64                `json:"created_at"`
}

// InsertSettlement stores a settlement and its applied transactions in one
// transaction and returns the new row id. A blockIndex of 0 is stored as
// unknown.
func InsertSettlement(s ledger.Settlement, blockIndex int) (string, error) {
	id := uuid.NewString()
	var block *int
	if blockIndex > 0 {
		block = &blockIndex
	}

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO settlements (id, identity, delta, observed, tx_count, block_index)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(s.Identity), s.Delta.String(), s.Observed, len(s.Applied), block); err != nil {
		return "", fmt.Errorf("insert settlement: %w", err)
	}
	for i, t := range s.Applied {
		if _, err := tx.Exec(`
			INSERT INTO settlement_transactions (settlement_id, position, sender, recipient, amount)
			VALUES (?, ?, ?, ?, ?)`,
			id, i, string(t.Sender), string(t.Recipient), t.Amount.String()); err != nil {
			return "", fmt.Errorf("insert settlement tx %d: %w", i, err)
		}
	}
	return id, tx.Commit()
}

// GetRecentSettlements returns the newest settlements first, with their
// applied transactions in ledger order.
func GetRecentSettlements(limit int) ([]SettlementRecord, error) {
	rows, err := db.Query(`
		SELECT id, identity, delta, observed, block_index, created_at
		FROM settlements ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var out []SettlementRecord
	for rows.Next() {
		var (
			r     SettlementRecord
			ident string
			delta string
			block sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &ident, &delta, &r.Observed, &block, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		r.Identity = ledger.Identity(ident)
		if r.Delta, err = decimal.NewFromString(delta); err != nil {
			rows.Close()
			return nil, fmt.Errorf("settlement %s: bad delta %q: %w", r.ID, delta, err)
		}
		if block.Valid {
			n := int(block.Int64)
			r.BlockIndex = &n
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// MaxOpenConns is 1, so the detail queries run after the cursor is closed.
	for i := range out {
		if out[i].Applied, err = settlementTransactions(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func settlementTransactions(id string) ([]ledger.Transaction, error) {
	rows, err := db.Query(`
		SELECT sender, recipient, amount FROM settlement_transactions
		WHERE settlement_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []ledger.Transaction{}
	for rows.Next() {
		var sender, recipient, amount string
		if err := rows.Scan(&sender, &recipient, &amount); err != nil {
			return nil, err
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("settlement %s: bad amount %q: %w", id, amount, err)
		}
		txs = append(txs, ledger.Transaction{
			Sender:    ledger.Identity(sender),
			Recipient: ledger.Identity(recipient),
			Amount:    amt,
		})
	}
	return txs, rows.Err()
}

// GetSettlementCount returns the total number of stored settlements.
func GetSettlementCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM settlements`).Scan(&n)
	return n, err
}
