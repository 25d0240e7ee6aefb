// Package db is the wallet's local journal: settlements, submissions and
// renames, plus a small key/value config table. It never feeds balance back
// into the ledger store.
package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"

	"github.com/b0ase/path402/apps/clawwallet/internal/logging"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Drivers accepted by Open.
const (
	DriverCGo    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

var (
	db  *sql.DB
	mu  sync.Mutex
	log = logging.New("db")
)

func dsn(driver, path string) (string, error) {
	switch driver {
	case DriverCGo:
		return path + "?_journal_mode=WAL&_foreign_keys=ON", nil
	case DriverPureGo:
		return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", driver)
	}
}

// Open initializes the SQLite database with the given driver and runs the
// embedded schema.
func Open(driver, path string) error {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		return nil // already open
	}

	source, err := dsn(driver, path)
	if err != nil {
		return err
	}
	db, err = sql.Open(driver, source)
	if err != nil {
		return err
	}

	// Single writer, multiple readers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		db = nil
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := ensureWalletID(); err != nil {
		db.Close()
		db = nil
		return err
	}

	log.Infof("Opened %s (%s)", path, driver)
	return nil
}

// Close shuts down the database connection.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		db.Close()
		db = nil
		log.Infof("Closed")
	}
}

// DB returns the underlying *sql.DB for direct queries.
func DB() *sql.DB {
	return db
}

// ensureWalletID gives a fresh database a stable random id.
func ensureWalletID() error {
	_, err := db.Exec(`INSERT OR IGNORE INTO config (key, value) VALUES ('wallet_id', ?)`, uuid.NewString())
	return err
}
