// Package snapshotfile persists the vault as a single JSON document on disk.
//
// The document carries a format marker and a version so that Load can tell a
// vault snapshot from any other file sitting at the configured path:
//
//	{"format":"credvault-snapshot","version":1,"saved_at":"...","accounts":[...]}
//
// Writes go to a temporary file in the same directory which is synced and
// renamed over the target, so readers only ever see a complete snapshot.
package snapshotfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const (
	formatName     = "credvault-snapshot"
	currentVersion = 1
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*Store)(nil)

type snapshotDocument struct {
	Format   string          `json:"format"`
	Version  int             `json:"version"`
	SavedAt  time.Time       `json:"saved_at"`
	Accounts []accountRecord `json:"accounts"`
}

type accountRecord struct {
	AccountName   string   `json:"account_name"`
	Username      string   `json:"username"`
	SecretHistory []string `json:"secret_history"`
}

// Store is the file implementation of the SnapshotStore port.
type Store struct {
	path string
	now  func() time.Time
}

// New creates a Store reading and writing the file at path.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the snapshot file with entries.
func (s *Store) Save(ctx context.Context, entries []model.CredentialEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := snapshotDocument{
		Format:   formatName,
		Version:  currentVersion,
		SavedAt:  s.now().UTC(),
		Accounts: make([]accountRecord, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Accounts = append(doc.Accounts, accountRecord{
			AccountName:   e.AccountName,
			Username:      e.Username,
			SecretHistory: e.SecretHistory,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.path, err)
	}

	return nil
}

// Load reads the snapshot file. It returns driven.ErrSnapshotNotFound when the
// file does not exist and wraps driven.ErrSnapshotCorrupt when the content is
// not a supported snapshot document.
func (s *Store) Load(ctx context.Context) ([]model.CredentialEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, driven.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("snapshot %s is empty: %w", s.path, driven.ErrSnapshotCorrupt)
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %v: %w", s.path, err, driven.ErrSnapshotCorrupt)
	}

	if doc.Format != formatName {
		return nil, fmt.Errorf("snapshot %s has format %q: %w", s.path, doc.Format, driven.ErrSnapshotCorrupt)
	}
	if doc.Version != currentVersion {
		return nil, fmt.Errorf("snapshot %s has unsupported version %d: %w", s.path, doc.Version, driven.ErrSnapshotCorrupt)
	}

	entries := make([]model.CredentialEntry, 0, len(doc.Accounts))
	for _, rec := range doc.Accounts {
		entries = append(entries, model.CredentialEntry{
			AccountName:   rec.AccountName,
			Username:      rec.Username,
			SecretHistory: rec.SecretHistory,
		})
	}

	return entries, nil
}
