package db

import "github.com/b0ase/path402/apps/clawwallet/internal/ledger"

type Rename struct {
	From      ledger.Identity `json:"from"`
	To        ledger.Identity `json:"to"`
	CreatedAt int64           `json:"created_at"`
}

// InsertRename logs a confirmed rename and stores to as the current identity.
func InsertRename(from, to ledger.Identity) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO renames (old_identity, new_identity) VALUES (?, ?)`,
		string(from), string(to)); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		keyIdentity, string(to)); err != nil {
		return err
	}
	return tx.Commit()
}

func GetRenames() ([]Rename, error) {
	rows, err := db.Query(`SELECT old_identity, new_identity, created_at FROM renames ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rename
	for rows.Next() {
		var r Rename
		var from, to string
		if err := rows.Scan(&from, &to, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.From, r.To = ledger.Identity(from), ledger.Identity(to)
		out = append(out, r)
	}
	return out, rows.Err()
}
