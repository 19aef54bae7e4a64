// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// Sentinel errors returned by SnapshotStore implementations.
var (
	// ErrSnapshotNotFound indicates that no snapshot has been saved yet.
	ErrSnapshotNotFound = errors.New("vault snapshot not found")

	// ErrSnapshotCorrupt indicates that the persisted snapshot exists but
	// cannot be interpreted as a vault.
	ErrSnapshotCorrupt = errors.New("vault snapshot is corrupt")
)

// SnapshotStore defines the driven port for whole-vault persistence.
// Save replaces the previous snapshot entirely; Load returns the entries in
// the order they were saved.
type SnapshotStore interface {
	Save(ctx context.Context, entries []model.CredentialEntry) error
	Load(ctx context.Context) ([]model.CredentialEntry, error)
}
