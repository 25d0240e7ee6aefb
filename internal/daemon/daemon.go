package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/b0ase/path402/apps/clawwallet/internal/config"
	"github.com/b0ase/path402/apps/clawwallet/internal/db"
	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/logging"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/b0ase/path402/apps/clawwallet/internal/server"
)

var log = logging.New("daemon")

// Daemon orchestrates the ClawWallet subsystems.
type Daemon struct {
	cfg       *config.Config
	walletID  string
	startTime time.Time
	gw        gateway.Gateway
	store     *ledger.Store
	engine    *reconcile.Engine
	httpSrv   *server.Server
	apiPort   int
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a new daemon instance talking to the backend at
// cfg.Server.URL.
func New(cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Daemon{
		cfg:    cfg,
		gw:     gateway.NewHTTPClient(cfg.Server.URL, cfg.Server.Timeout),
		stopCh: make(chan struct{}),
	}, nil
}

// Start initializes and starts all subsystems in order.
func (d *Daemon) Start() error {
	d.startTime = time.Now()

	if err := logging.SetLevel(d.cfg.Log.Level); err != nil {
		log.Warnf("%v (keeping current level)", err)
	}

	// 1. Open journal
	if err := os.MkdirAll(d.cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := db.Open(d.cfg.DB.Driver, d.cfg.DBPath()); err != nil {
		return fmt.Errorf("db open: %w", err)
	}

	walletID, err := db.GetWalletID()
	if err != nil {
		db.Close()
		return fmt.Errorf("get wallet id: %w", err)
	}
	d.walletID = walletID
	log.Infof("Wallet ID: %s", walletID[:8])

	// 2. Identity: the last one the backend confirmed, else the configured
	//    placeholder.
	id, err := db.GetIdentity()
	if err != nil {
		db.Close()
		return fmt.Errorf("get identity: %w", err)
	}
	if id == "" {
		id = ledger.Identity(d.cfg.Wallet.Username)
		if err := db.SetIdentity(id); err != nil {
			log.Warnf("Failed to persist identity: %v", err)
		}
	}

	// 3. Store + engine
	d.store = ledger.NewStore(id)
	d.engine = reconcile.New(d.store, d.gw, db.Journal{})
	d.store.Subscribe(func(s ledger.Snapshot) {
		log.Debugf("%s: balance %s, %d txs, mining %s", s.Identity, s.Balance, len(s.Transactions), s.Mining)
	})

	// 4. Initial load runs in the background; each half renders on arrival
	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		if err := d.engine.LoadInitialState(context.Background(), id); err != nil {
			log.Warnf("Initial load incomplete: %v", err)
			return
		}
		log.Infof("Loaded %s: balance %s", id, d.store.Balance())
	}()

	// 5. Auto-mine loop, first round after the initial load has reset the store
	if d.cfg.Mining.AutoInterval > 0 {
		d.wg.Add(1)
		go d.mineLoop(d.cfg.Mining.AutoInterval, loaded)
		log.Infof("Auto-mining every %v", d.cfg.Mining.AutoInterval)
	}

	d.wg.Add(1)
	go d.statusLoop()

	// 6. Local API
	if d.cfg.API.Enabled {
		d.httpSrv = server.New(d.cfg.API.Bind, d.cfg.API.Port, d)
		if port, err := d.httpSrv.Start(); err != nil {
			log.Warnf("HTTP API failed to start: %v", err)
			d.httpSrv = nil
		} else {
			d.apiPort = port
			log.Infof("HTTP API on port %d", port)
		}
	}

	log.Infof("All systems online (backend %s)", d.cfg.Server.URL)
	return nil
}

func (d *Daemon) mineLoop(every time.Duration, loaded <-chan struct{}) {
	defer d.wg.Done()
	select {
	case <-d.stopCh:
		return
	case <-loaded:
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			_, err := d.engine.StartMining(context.Background())
			switch {
			case err == nil:
			case errors.Is(err, reconcile.ErrMiningInFlight):
				log.Debugf("Auto-mine skipped: round in flight")
			default:
				log.Warnf("Auto-mine failed: %v", err)
			}
		}
	}
}

func (d *Daemon) statusLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			snap := d.store.Snapshot()
			settled, _ := db.GetSettlementCount()
			log.Infof("Identity: %s | Balance: %s | Txs: %d | Settlements: %d | Mining: %s",
				snap.Identity, snap.Balance, len(snap.Transactions), settled, snap.Mining)
		}
	}
}

// Stop shuts everything down. A mining round already in flight is left to
// finish on its own goroutine; its journal write either lands before the
// database closes or fails with a closed-journal error.
func (d *Daemon) Stop() {
	log.Infof("Shutting down...")
	close(d.stopCh)

	if d.httpSrv != nil {
		d.httpSrv.Stop()
	}
	d.wg.Wait()
	db.Close()

	log.Infof("Shutdown complete")
}

// ── Accessors for the API, MCP and mobile surfaces ───────────────

func (d *Daemon) WalletID() string          { return d.walletID }
func (d *Daemon) Uptime() time.Duration     { return time.Since(d.startTime) }
func (d *Daemon) APIPort() int              { return d.apiPort }
func (d *Daemon) BackendURL() string        { return d.cfg.Server.URL }
func (d *Daemon) Engine() *reconcile.Engine { return d.engine }

func (d *Daemon) Snapshot() ledger.Snapshot {
	return d.store.Snapshot()
}

func (d *Daemon) RecentSettlements(limit int) ([]db.SettlementRecord, error) {
	return db.GetRecentSettlements(limit)
}
