package db

import (
	"database/sql"
	"fmt"

	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Submission is a transfer the backend accepted for a future block.
type Submission struct {
	ID         string          `json:"id"`
	Sender     ledger.Identity `json:"sender"`
	Recipient  ledger.Identity `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
	Message    string          `json:"message"`
	BlockIndex *int            `json:"block_index,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

func InsertSubmission(s *Submission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO submissions (id, sender, recipient, amount, message, block_index)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, string(s.Sender), string(s.Recipient), s.Amount.String(), s.Message, s.BlockIndex)
	return err
}

func GetRecentSubmissions(limit int) ([]Submission, error) {
	rows, err := db.Query(`
		SELECT id, sender, recipient, amount, message, block_index, created_at
		FROM submissions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var (
			s                         Submission
			sender, recipient, amount string
			message                   sql.NullString
			block                     sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &sender, &recipient, &amount, &message, &block, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Sender, s.Recipient, s.Message = ledger.Identity(sender), ledger.Identity(recipient), message.String
		if s.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("submission %s: bad amount %q: %w", s.ID, amount, err)
		}
		if block.Valid {
			n := int(block.Int64)
			s.BlockIndex = &n
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
