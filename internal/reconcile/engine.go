// Package reconcile drives the wallet: each operation makes gateway calls
// and merges their results into the ledger store. A failed call never
// mutates the store.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/logging"
	"github.com/sasha-s/go-deadlock"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var log = logging.New("engine")

// Journal records committed outcomes. Write failures are logged and never
// undo the store change they describe.
type Journal interface {
	RecordSettlement(s ledger.Settlement, blockIndex int) error
	RecordSubmission(sender, recipient ledger.Identity, amount decimal.Decimal, ack *gateway.Acknowledgement) error
	RecordRename(from, to ledger.Identity) error
}

// Draft is the pending send form. Amount is kept as typed.
type Draft struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Engine composes gateway calls with store mutations.
type Engine struct {
	store   *ledger.Store
	gw      gateway.Gateway
	journal Journal

	draftMu deadlock.Mutex
	draft   Draft
}

// New creates an engine. journal may be nil.
func New(store *ledger.Store, gw gateway.Gateway, journal Journal) *Engine {
	return &Engine{store: store, gw: gw, journal: journal}
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *ledger.Store { return e.store }

// detach keeps a call running to completion even if the caller goes away;
// its result is applied to whatever state exists when it returns.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// LoadInitialState resets the store to id and fetches balance and history
// in parallel. Each successful fetch is applied on its own; a failed one
// leaves its placeholder. The returned error combines both failures.
// A mining round in flight is not disturbed.
func (e *Engine) LoadInitialState(ctx context.Context, id ledger.Identity) error {
	e.store.Reload(id)
	return e.load(detach(ctx), id)
}

// Refresh re-fetches balance and history for the current identity.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.load(detach(ctx), e.store.Identity())
}

func (e *Engine) load(ctx context.Context, id ledger.Identity) error {
	var (
		g       errgroup.Group
		balErr  error
		histErr error
	)

	g.Go(func() error {
		bal, err := e.gw.FetchBalance(ctx, id)
		if err != nil {
			log.Warnf("balance fetch for %s failed: %v", id, err)
			balErr = err
			return nil
		}
		e.store.ReplaceBalance(bal)
		log.Debugf("balance for %s: %s", id, bal)
		return nil
	})

	g.Go(func() error {
		txs, err := e.gw.FetchTransactions(ctx, id)
		if err != nil {
			log.Warnf("transactions fetch for %s failed: %v", id, err)
			histErr = err
			return nil
		}
		e.store.ReplaceTransactions(txs)
		log.Debugf("%d transactions for %s", len(txs), id)
		return nil
	})

	g.Wait()
	return multierr.Combine(balErr, histErr)
}

// RenameIdentity asks the backend to rename the current identity and
// renames the store only once the backend confirms it.
func (e *Engine) RenameIdentity(ctx context.Context, newID ledger.Identity) error {
	newID = ledger.Identity(strings.TrimSpace(string(newID)))
	old := e.store.Identity()
	if newID == "" {
		return invalid("username", "must not be empty")
	}
	if newID == old {
		return invalid("username", "already %q", old)
	}

	ok, err := e.gw.ChangeIdentity(detach(ctx), old, newID)
	if err != nil {
		log.Warnf("rename %s -> %s failed: %v", old, newID, err)
		return fmt.Errorf("rename to %s: %w", newID, err)
	}
	if !ok {
		log.Warnf("rename %s -> %s refused by backend", old, newID)
		return fmt.Errorf("rename to %s: %w", newID, &gateway.Error{
			Op:      "change",
			Kind:    gateway.KindRejected,
			Message: "backend refused the rename",
		})
	}

	e.store.RenameIdentity(newID)
	log.Infof("identity renamed %s -> %s", old, newID)
	if e.journal != nil {
		if err := e.journal.RecordRename(old, newID); err != nil {
			log.Errorf("journal rename: %v", err)
		}
	}
	return nil
}

// SendTransaction submits a transfer from the current identity. Inputs are
// checked against the local balance before any request is made. Balance and
// history are left alone: the transfer becomes visible once it is mined.
// On success the draft is cleared.
func (e *Engine) SendTransaction(ctx context.Context, recipient ledger.Identity, amount decimal.Decimal) (*gateway.Acknowledgement, error) {
	snap := e.store.Snapshot()
	if strings.TrimSpace(string(recipient)) == "" {
		return nil, invalid("recipient", "must not be empty")
	}
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}
	if amount.GreaterThan(snap.Balance) {
		return nil, invalid("amount", "%s exceeds balance %s", amount, snap.Balance)
	}

	ack, err := e.gw.SubmitTransaction(detach(ctx), snap.Identity, recipient, amount)
	if err != nil {
		log.Warnf("send %s -> %s (%s) failed: %v", snap.Identity, recipient, amount, err)
		return nil, fmt.Errorf("send to %s: %w", recipient, err)
	}

	log.Infof("submitted %s -> %s (%s): %s", snap.Identity, recipient, amount, ack.Message)
	e.ClearDraft()
	if e.journal != nil {
		if err := e.journal.RecordSubmission(snap.Identity, recipient, amount, ack); err != nil {
			log.Errorf("journal submission: %v", err)
		}
	}
	return ack, nil
}

// SetDraft replaces the pending send form.
func (e *Engine) SetDraft(d Draft) {
	e.draftMu.Lock()
	e.draft = d
	e.draftMu.Unlock()
}

// Draft returns the pending send form.
func (e *Engine) Draft() Draft {
	e.draftMu.Lock()
	defer e.draftMu.Unlock()
	return e.draft
}

// ClearDraft empties the pending send form.
func (e *Engine) ClearDraft() {
	e.SetDraft(Draft{})
}

// SubmitDraft sends the pending form. The draft stays as typed when
// validation or the request fails.
func (e *Engine) SubmitDraft(ctx context.Context) (*gateway.Acknowledgement, error) {
	d := e.Draft()
	raw := strings.TrimSpace(d.Amount)
	if raw == "" {
		return nil, invalid("amount", "must not be empty")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalid("amount", "%q is not a number", d.Amount)
	}
	return e.SendTransaction(ctx, ledger.Identity(strings.TrimSpace(d.Recipient)), amount)
}

// StartMining runs one mining round for the current identity. At most one
// round runs at a time; a second call while one is in flight returns
// ErrMiningInFlight without contacting the backend. A failed round leaves
// the ledger untouched.
func (e *Engine) StartMining(ctx context.Context) (*ledger.Settlement, error) {
	if !e.store.TransitionMining(ledger.MiningIdle, ledger.MiningInFlight) {
		return nil, ErrMiningInFlight
	}

	id := e.store.Identity()
	log.Infof("mining for %s", id)
	res, err := e.gw.TriggerMine(detach(ctx), id)
	if err != nil {
		e.store.TransitionMining(ledger.MiningInFlight, ledger.MiningIdle)
		log.Warnf("mining for %s failed: %v", id, err)
		return nil, fmt.Errorf("mine: %w", err)
	}

	e.store.TransitionMining(ledger.MiningInFlight, ledger.MiningSettling)
	settlement := e.store.ApplyMiningSettlement(res.Transactions)
	e.store.TransitionMining(ledger.MiningSettling, ledger.MiningIdle)

	log.Infof("block %d settled for %s: %d/%d transactions, delta %s",
		res.Index, settlement.Identity, len(settlement.Applied), settlement.Observed, settlement.Delta)
	if e.journal != nil {
		if err := e.journal.RecordSettlement(settlement, res.Index); err != nil {
			log.Errorf("journal settlement: %v", err)
		}
	}
	return &settlement, nil
}
