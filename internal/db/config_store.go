package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
)

const keyIdentity = "identity"

func GetConfig(key string) (string, error) {
	var val string
	err := db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&val)
	if err != nil {
		return "", err
	}
	return val, nil
}

func SetConfig(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	return err
}

func GetWalletID() (string, error) {
	return GetConfig("wallet_id")
}

// GetIdentity returns the last identity the backend confirmed, or "" if
// none has been stored.
func GetIdentity() (ledger.Identity, error) {
	val, err := GetConfig(keyIdentity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return ledger.Identity(val), err
}

func SetIdentity(id ledger.Identity) error {
	return SetConfig(keyIdentity, string(id))
}
