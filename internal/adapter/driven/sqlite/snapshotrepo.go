package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo is the SQLite implementation of the SnapshotStore port.
// Each Save replaces the whole vault inside one transaction.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new SnapshotRepo backed by the given DB.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save atomically replaces all accounts and their secret histories.
func (r *SnapshotRepo) Save(ctx context.Context, entries []model.CredentialEntry) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	// secret_history rows go with their accounts via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	const insertAccount = `INSERT INTO accounts (account_name, username, position) VALUES (?, ?, ?)`
	const insertSecret = `INSERT INTO secret_history (account_name, seq, secret) VALUES (?, ?, ?)`

	for pos, e := range entries {
		if _, err := tx.ExecContext(ctx, insertAccount, e.AccountName, e.Username, pos); err != nil {
			return fmt.Errorf("insert account %q: %w", e.AccountName, err)
		}
		for seq, secret := range e.SecretHistory {
			if _, err := tx.ExecContext(ctx, insertSecret, e.AccountName, seq, secret); err != nil {
				return fmt.Errorf("insert secret %d for %q: %w", seq, e.AccountName, err)
			}
		}
	}

	const upsertMeta = `INSERT OR REPLACE INTO snapshot_meta (id, saved_at) VALUES (1, ?)`
	if _, err := tx.ExecContext(ctx, upsertMeta, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record snapshot time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	return nil
}

// Load returns all accounts in saved order with their histories in sequence
// order. A database that has never been saved to returns driven.ErrSnapshotNotFound.
func (r *SnapshotRepo) Load(ctx context.Context) ([]model.CredentialEntry, error) {
	var saved int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_meta`).Scan(&saved); err != nil {
		return nil, fmt.Errorf("read snapshot meta: %v: %w", err, driven.ErrSnapshotCorrupt)
	}
	if saved == 0 {
		return nil, driven.ErrSnapshotNotFound
	}

	const accountsQuery = `SELECT account_name, username FROM accounts ORDER BY position`
	rows, err := r.db.Reader.QueryContext(ctx, accountsQuery)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %v: %w", err, driven.ErrSnapshotCorrupt)
	}
	defer rows.Close()

	var entries []model.CredentialEntry
	index := make(map[string]int)
	for rows.Next() {
		var e model.CredentialEntry
		if err := rows.Scan(&e.AccountName, &e.Username); err != nil {
			return nil, fmt.Errorf("scan account: %v: %w", err, driven.ErrSnapshotCorrupt)
		}
		index[e.AccountName] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %v: %w", err, driven.ErrSnapshotCorrupt)
	}

	const historyQuery = `SELECT account_name, secret FROM secret_history ORDER BY account_name, seq`
	hrows, err := r.db.Reader.QueryContext(ctx, historyQuery)
	if err != nil {
		return nil, fmt.Errorf("list secret history: %v: %w", err, driven.ErrSnapshotCorrupt)
	}
	defer hrows.Close()

	for hrows.Next() {
		var account, secret string
		if err := hrows.Scan(&account, &secret); err != nil {
			return nil, fmt.Errorf("scan secret: %v: %w", err, driven.ErrSnapshotCorrupt)
		}
		i, ok := index[account]
		if !ok {
			return nil, fmt.Errorf("secret for unknown account %q: %w", account, driven.ErrSnapshotCorrupt)
		}
		entries[i].SecretHistory = append(entries[i].SecretHistory, secret)
	}
	if err := hrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate secret history: %v: %w", err, driven.ErrSnapshotCorrupt)
	}

	for _, e := range entries {
		if len(e.SecretHistory) == 0 {
			return nil, fmt.Errorf("account %q has no secrets: %w", e.AccountName, driven.ErrSnapshotCorrupt)
		}
	}

	return entries, nil
}
