// Package gatewaytest provides an in-memory ledger backend that speaks the
// same HTTP/JSON contract as the real one. Tests use it through httptest;
// cmd/ledgerd serves it for local development.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// RewardSender is the sender of mining reward transactions.
const RewardSender ledger.Identity = "0"

// Backend is a toy ledger: confirmed blocks, a pending pool, a mining reward.
type Backend struct {
	mu       sync.Mutex
	chain    [][]ledger.Transaction
	pending  []ledger.Transaction
	reward   decimal.Decimal
	calls    map[string]int
	failures map[string]int
	mineGate chan struct{}
	refuse   map[string]bool
}

// NewBackend creates a backend with an empty genesis block and a reward of 1.
func NewBackend() *Backend {
	return &Backend{
		chain:    [][]ledger.Transaction{nil},
		reward:   decimal.NewFromInt(1),
		calls:    make(map[string]int),
		failures: make(map[string]int),
		refuse:   make(map[string]bool),
	}
}

// NewServer starts an httptest server for a fresh backend.
func NewServer() (*Backend, *httptest.Server) {
	b := NewBackend()
	return b, httptest.NewServer(b.Handler())
}

// SetReward changes the amount credited to the miner of each block.
func (b *Backend) SetReward(reward decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reward = reward
}

// Seed appends a confirmed block holding txs.
func (b *Backend) Seed(txs ...ledger.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chain = append(b.chain, append([]ledger.Transaction(nil), txs...))
}

// Pending returns a copy of the unconfirmed pool.
func (b *Backend) Pending() []ledger.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ledger.Transaction(nil), b.pending...)
}

// Calls returns how many requests path has received.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// FailNext makes the next request to path answer with status.
func (b *Backend) FailNext(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = status
}

// RefuseRename makes renames to name answer {"success": false}.
func (b *Backend) RefuseRename(name ledger.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refuse[string(name)] = true
}

// HoldMining makes /mine block until the returned release func is called.
func (b *Backend) HoldMining() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.mineGate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Balance computes id's balance from the whole chain.
func (b *Backend) Balance(id ledger.Identity) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ledger.NetFor(id, b.flatten())
}

func (b *Backend) flatten() []ledger.Transaction {
	var all []ledger.Transaction
	for _, block := range b.chain {
		all = append(all, block...)
	}
	return all
}

// Handler returns the backend's HTTP routes.
func (b *Backend) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(b.countAndFail)
	r.HandleFunc(gateway.PathBalance, b.handleBalance).Methods(http.MethodPost)
	r.HandleFunc(gateway.PathTransactions, b.handleTransactions).Methods(http.MethodPost)
	r.HandleFunc(gateway.PathChange, b.handleChange).Methods(http.MethodPost)
	r.HandleFunc(gateway.PathSubmit, b.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc(gateway.PathMine, b.handleMine).Methods(http.MethodPost)
	r.HandleFunc("/chain", b.handleChain).Methods(http.MethodGet)
	return r
}

func (b *Backend) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		status, fail := b.failures[r.URL.Path]
		delete(b.failures, r.URL.Path)
		b.mu.Unlock()

		if fail {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type wireTx struct {
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    json.RawMessage `json:"amount"`
}

func toWire(txs []ledger.Transaction) []wireTx {
	out := make([]wireTx, 0, len(txs))
	for _, tx := range txs {
		out = append(out, wireTx{
			Sender:    string(tx.Sender),
			Recipient: string(tx.Recipient),
			Amount:    json.RawMessage(tx.Amount.String()),
		})
	}
	return out
}

func decode(r *http.Request, v interface{}) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (b *Backend) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decode(r, &req) || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing fields"})
		return
	}
	bal := b.Balance(ledger.Identity(req.Username))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username": req.Username,
		"balance":  json.RawMessage(bal.String()),
	})
}

func (b *Backend) handleTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decode(r, &req) || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing fields"})
		return
	}
	id := ledger.Identity(req.Username)

	b.mu.Lock()
	var mine []ledger.Transaction
	for _, tx := range b.flatten() {
		if tx.Involves(id) {
			mine = append(mine, tx)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": toWire(mine)})
}

func (b *Backend) handleChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LastUsername string `json:"lastUsername"`
		Username     string `json:"username"`
	}
	if !decode(r, &req) || req.LastUsername == "" || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing fields"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refuse[req.Username] {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	from, to := ledger.Identity(req.LastUsername), ledger.Identity(req.Username)
	for _, tx := range b.flatten() {
		if from != to && tx.Involves(to) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Username already taken"})
			return
		}
	}
	for _, block := range b.chain {
		for i := range block {
			if block[i].Sender == from {
				block[i].Sender = to
			}
			if block[i].Recipient == from {
				block[i].Recipient = to
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (b *Backend) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender    string           `json:"sender"`
		Recipient string           `json:"recipient"`
		Amount    *decimal.Decimal `json:"amount"`
	}
	if !decode(r, &req) || req.Sender == "" || req.Recipient == "" || req.Amount == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing values"})
		return
	}

	b.mu.Lock()
	b.pending = append(b.pending, ledger.Transaction{
		Sender:    ledger.Identity(req.Sender),
		Recipient: ledger.Identity(req.Recipient),
		Amount:    *req.Amount,
	})
	index := len(b.chain) + 1
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("Transaction will be added to Block %d", index),
	})
}

func (b *Backend) handleMine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decode(r, &req) || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing Values"})
		return
	}

	b.mu.Lock()
	gate := b.mineGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	block := append(b.pending, ledger.Transaction{
		Sender:    RewardSender,
		Recipient: ledger.Identity(req.Username),
		Amount:    b.reward,
	})
	b.pending = nil
	b.chain = append(b.chain, block)
	index := len(b.chain)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "New Block Forged",
		"index":        index,
		"transactions": toWire(block),
	})
}

func (b *Backend) handleChain(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blocks := make([][]wireTx, 0, len(b.chain))
	for _, block := range b.chain {
		blocks = append(blocks, toWire(block))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"length": len(b.chain),
		"chain":  blocks,
	})
}
