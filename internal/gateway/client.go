package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/logging"
	"github.com/shopspring/decimal"
)

const maxResponseBytes = 4 << 20

var (
	log       = logging.New("gateway")
	blockNoRe = regexp.MustCompile(`[Bb]lock (\d+)`)
)

// HTTPClient talks to the ledger backend over HTTP/JSON.
type HTTPClient struct {
	BaseURL string // e.g. "http://localhost:5000"
	client  *http.Client
}

// NewHTTPClient creates a client for baseURL. A zero timeout means calls
// wait as long as their context allows.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ── wire types ───────────────────────────────────────────────────

// amount encodes as a bare JSON number and accepts numbers or strings.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = amount(d)
	return nil
}

type wireTx struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    amount `json:"amount"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

type changeRequest struct {
	LastUsername string `json:"lastUsername"`
	Username     string `json:"username"`
}

type submitRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    amount `json:"amount"`
}

type balanceResponse struct {
	Balance *amount `json:"balance"`
}

type transactionsResponse struct {
	Transactions *[]wireTx `json:"transactions"`
}

type changeResponse struct {
	Success *bool `json:"success"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type mineResponse struct {
	Message      string    `json:"message"`
	Index        int       `json:"index"`
	Transactions *[]wireTx `json:"transactions"`
}

func toLedger(op string, in []wireTx) ([]ledger.Transaction, error) {
	out := make([]ledger.Transaction, 0, len(in))
	for i, w := range in {
		amt := decimal.Decimal(w.Amount)
		if amt.IsNegative() {
			return nil, &Error{Op: op, Kind: KindServer, Err: fmt.Errorf("transaction %d has negative amount %s", i, amt)}
		}
		out = append(out, ledger.Transaction{
			Sender:    ledger.Identity(w.Sender),
			Recipient: ledger.Identity(w.Recipient),
			Amount:    amt,
		})
	}
	return out, nil
}

// ── operations ───────────────────────────────────────────────────

// FetchBalance returns the backend's balance for id.
func (c *HTTPClient) FetchBalance(ctx context.Context, id ledger.Identity) (decimal.Decimal, error) {
	var resp balanceResponse
	if _, err := c.post(ctx, "balance", PathBalance, usernameRequest{Username: string(id)}, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Balance == nil {
		return decimal.Zero, &Error{Op: "balance", Kind: KindServer, Err: fmt.Errorf("response has no balance")}
	}
	return decimal.Decimal(*resp.Balance), nil
}

// FetchTransactions returns the confirmed transactions involving id, in
// ledger order.
func (c *HTTPClient) FetchTransactions(ctx context.Context, id ledger.Identity) ([]ledger.Transaction, error) {
	var resp transactionsResponse
	if _, err := c.post(ctx, "transactions", PathTransactions, usernameRequest{Username: string(id)}, &resp); err != nil {
		return nil, err
	}
	if resp.Transactions == nil {
		return nil, &Error{Op: "transactions", Kind: KindServer, Err: fmt.Errorf("response has no transactions")}
	}
	return toLedger("transactions", *resp.Transactions)
}

// ChangeIdentity asks the backend to rename from to to.
func (c *HTTPClient) ChangeIdentity(ctx context.Context, from, to ledger.Identity) (bool, error) {
	var resp changeResponse
	_, err := c.post(ctx, "change", PathChange, changeRequest{LastUsername: string(from), Username: string(to)}, &resp)
	if err != nil {
		return false, err
	}
	if resp.Success == nil {
		return false, &Error{Op: "change", Kind: KindServer, Err: fmt.Errorf("response has no success flag")}
	}
	return *resp.Success, nil
}

// SubmitTransaction queues a transaction on the backend.
func (c *HTTPClient) SubmitTransaction(ctx context.Context, sender, recipient ledger.Identity, amt decimal.Decimal) (*Acknowledgement, error) {
	var resp messageResponse
	req := submitRequest{Sender: string(sender), Recipient: string(recipient), Amount: amount(amt)}
	if _, err := c.post(ctx, "submit", PathSubmit, req, &resp); err != nil {
		return nil, err
	}
	ack := &Acknowledgement{Message: resp.Message}
	if m := blockNoRe.FindStringSubmatch(resp.Message); m != nil {
		ack.BlockIndex, _ = strconv.Atoi(m[1])
	}
	return ack, nil
}

// TriggerMine asks the backend to mine a block on behalf of id. A reply
// without a transaction list means no block was forged.
func (c *HTTPClient) TriggerMine(ctx context.Context, id ledger.Identity) (*MineResult, error) {
	var resp mineResponse
	if _, err := c.post(ctx, "mine", PathMine, usernameRequest{Username: string(id)}, &resp); err != nil {
		return nil, err
	}
	if resp.Transactions == nil {
		return nil, &Error{Op: "mine", Kind: KindRejected, Message: resp.Message}
	}
	txs, err := toLedger("mine", *resp.Transactions)
	if err != nil {
		return nil, err
	}
	return &MineResult{Index: resp.Index, Message: resp.Message, Transactions: txs}, nil
}

// post sends body as JSON to path and decodes a 2xx reply into out.
func (c *HTTPClient) post(ctx context.Context, op, path string, body, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warnf("%s %s failed after %v: %v", op, path, time.Since(start).Round(time.Millisecond), err)
		return 0, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	log.Debugf("%s %s -> %d in %v", op, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode >= 300 {
		kind := KindRejected
		if resp.StatusCode >= 500 {
			kind = KindServer
		}
		return resp.StatusCode, &Error{Op: op, Kind: kind, Status: resp.StatusCode, Message: serverMessage(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, &Error{Op: op, Kind: KindServer, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}

// serverMessage pulls a human-readable message out of an error body.
func serverMessage(raw []byte) string {
	var m messageResponse
	if err := json.Unmarshal(raw, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
