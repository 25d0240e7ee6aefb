package ledger

import "github.com/shopspring/decimal"

// Settle filters observed down to the transactions that involve id, keeping
// their order, and returns them with the net change they imply for id's
// balance. A transfer from id to itself is kept once and nets to zero.
func Settle(id Identity, observed []Transaction) ([]Transaction, decimal.Decimal) {
	delta := decimal.Zero
	var applied []Transaction
	for _, tx := range observed {
		if !tx.Involves(id) {
			continue
		}
		if tx.Recipient == id {
			delta = delta.Add(tx.Amount)
		}
		if tx.Sender == id {
			delta = delta.Sub(tx.Amount)
		}
		applied = append(applied, tx)
	}
	return applied, delta
}

// NetFor sums the balance effect of txs on id. It is the quantity a full
// recomputation would produce; the store itself never recomputes.
func NetFor(id Identity, txs []Transaction) decimal.Decimal {
	_, delta := Settle(id, txs)
	return delta
}
