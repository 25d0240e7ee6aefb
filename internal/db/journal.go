package db

import (
	"errors"

	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/shopspring/decimal"
)

var errClosed = errors.New("journal database is not open")

// whileOpen runs write with the handle pinned so Close waits for it.
func whileOpen(write func() error) error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return errClosed
	}
	return write()
}

// Journal writes engine outcomes to the open database. Writes after Close
// fail with an error instead of touching a nil handle.
type Journal struct{}

func (Journal) RecordSettlement(s ledger.Settlement, blockIndex int) error {
	return whileOpen(func() error {
		_, err := InsertSettlement(s, blockIndex)
		return err
	})
}

func (Journal) RecordSubmission(sender, recipient ledger.Identity, amount decimal.Decimal, ack *gateway.Acknowledgement) error {
	s := &Submission{Sender: sender, Recipient: recipient, Amount: amount}
	if ack != nil {
		s.Message = ack.Message
		if ack.BlockIndex > 0 {
			idx := ack.BlockIndex
			s.BlockIndex = &idx
		}
	}
	return whileOpen(func() error { return InsertSubmission(s) })
}

func (Journal) RecordRename(from, to ledger.Identity) error {
	return whileOpen(func() error { return InsertRename(from, to) })
}
