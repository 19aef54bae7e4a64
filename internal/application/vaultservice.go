package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
	"github.com/ericfisherdev/credvault/internal/domain/port/driving"
)

// Compile-time interface satisfaction check.
var _ driving.Vault = (*VaultService)(nil)

// VaultService owns the account -> credential entry mapping. Every operation
// runs under a single mutex, including the durable write, so the existence
// check and insert in Add cannot interleave with another caller.
//
// Mutations are computed on a copy of the mapping and swapped in only after
// the snapshot store accepted the new state, so memory never runs ahead of disk.
type VaultService struct {
	mu        sync.Mutex
	entries   map[string]model.CredentialEntry
	snapshots driven.SnapshotStore
	codec     driven.SecretCodec
	generator *PasswordGenerator
	logger    *slog.Logger
}

// OpenVault creates a VaultService populated from snapshots. A missing,
// unreadable or corrupt snapshot yields an empty vault; the failure is logged
// and never returned, so startup always succeeds.
func OpenVault(
	ctx context.Context,
	snapshots driven.SnapshotStore,
	codec driven.SecretCodec,
	generator *PasswordGenerator,
	logger *slog.Logger,
) *VaultService {
	if generator == nil {
		generator = NewPasswordGenerator(nil)
	}

	s := &VaultService{
		entries:   make(map[string]model.CredentialEntry),
		snapshots: snapshots,
		codec:     codec,
		generator: generator,
		logger:    logger,
	}

	loaded, err := snapshots.Load(ctx)
	if err == nil {
		var indexed map[string]model.CredentialEntry
		indexed, err = indexSnapshot(loaded)
		if err == nil {
			s.entries = indexed
			logger.Info("vault loaded", "accounts", len(indexed), "codec", codec.Name())
			return s
		}
	}

	if errors.Is(err, driven.ErrSnapshotNotFound) {
		logger.Info("no previous vault data found, starting with an empty vault")
	} else {
		logger.Warn("vault snapshot unusable, starting with an empty vault", "error", err)
	}

	return s
}

// indexSnapshot validates loaded entries and builds the lookup map.
func indexSnapshot(entries []model.CredentialEntry) (map[string]model.CredentialEntry, error) {
	indexed := make(map[string]model.CredentialEntry, len(entries))
	for i, e := range entries {
		if e.AccountName == "" {
			return nil, fmt.Errorf("entry %d has an empty account name: %w", i, driven.ErrSnapshotCorrupt)
		}
		if len(e.SecretHistory) == 0 {
			return nil, fmt.Errorf("account %q has an empty secret history: %w", e.AccountName, driven.ErrSnapshotCorrupt)
		}
		if _, dup := indexed[e.AccountName]; dup {
			return nil, fmt.Errorf("account %q appears twice: %w", e.AccountName, driven.ErrSnapshotCorrupt)
		}
		indexed[e.AccountName] = e.Clone()
	}
	return indexed, nil
}

// Add stores a new account whose history holds the encoded password.
func (s *VaultService) Add(ctx context.Context, accountName, username, password string) (model.CredentialEntry, error) {
	if accountName == "" {
		return model.CredentialEntry{}, ErrInvalidAccountName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[accountName]; exists {
		return model.CredentialEntry{}, fmt.Errorf("add %q: %w", accountName, ErrDuplicateAccount)
	}

	encoded, err := s.codec.Encode(password)
	if err != nil {
		return model.CredentialEntry{}, fmt.Errorf("encode password for %q: %w", accountName, err)
	}

	entry := model.NewCredentialEntry(accountName, username, encoded)

	next := maps.Clone(s.entries)
	next[accountName] = entry
	if err := s.commit(ctx, "add", next); err != nil {
		return model.CredentialEntry{}, err
	}

	s.logger.Info("account added", "account", accountName)
	return entry.Clone(), nil
}

// Retrieve returns a copy of the entry for accountName.
func (s *VaultService) Retrieve(accountName string) (model.CredentialEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[accountName]
	if !ok {
		return model.CredentialEntry{}, fmt.Errorf("retrieve %q: %w", accountName, ErrAccountNotFound)
	}
	return entry.Clone(), nil
}

// CurrentPassword returns the decoded latest secret of accountName.
func (s *VaultService) CurrentPassword(accountName string) (string, error) {
	_, plaintext, err := s.RetrieveWithPassword(accountName)
	return plaintext, err
}

// RetrieveWithPassword returns a copy of the entry for accountName together
// with its decoded latest secret, both read under the same lock so the
// password always belongs to the returned history.
func (s *VaultService) RetrieveWithPassword(accountName string) (model.CredentialEntry, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[accountName]
	if !ok {
		return model.CredentialEntry{}, "", fmt.Errorf("retrieve %q: %w", accountName, ErrAccountNotFound)
	}

	plaintext, err := s.codec.Decode(entry.LatestSecret())
	if err != nil {
		return model.CredentialEntry{}, "", fmt.Errorf("decode current password for %q: %w", accountName, err)
	}
	return entry.Clone(), plaintext, nil
}

// Delete removes accountName from the vault.
func (s *VaultService) Delete(ctx context.Context, accountName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[accountName]; !ok {
		return fmt.Errorf("delete %q: %w", accountName, ErrAccountNotFound)
	}

	next := maps.Clone(s.entries)
	delete(next, accountName)
	if err := s.commit(ctx, "delete", next); err != nil {
		return err
	}

	s.logger.Info("account deleted", "account", accountName)
	return nil
}

// List returns a summary of every account. Callers must not depend on the
// order; it is currently ascending by account name.
func (s *VaultService) List() []model.AccountSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]model.AccountSummary, 0, len(s.entries))
	for _, e := range sortedEntries(s.entries) {
		summaries = append(summaries, model.AccountSummary{
			AccountName: e.AccountName,
			Username:    e.Username,
		})
	}
	return summaries
}

// ViewHistory decodes every secret of accountName in chronological order.
// A secret that fails to decode is reported on its own item.
func (s *VaultService) ViewHistory(accountName string) ([]model.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[accountName]
	if !ok {
		return nil, fmt.Errorf("view history %q: %w", accountName, ErrAccountNotFound)
	}

	items := make([]model.HistoryItem, 0, len(entry.SecretHistory))
	for i, stored := range entry.SecretHistory {
		item := model.HistoryItem{Position: i}
		plaintext, err := s.codec.Decode(stored)
		if err != nil {
			s.logger.Warn("history entry failed to decode", "account", accountName, "position", i, "error", err)
			item.Err = err
		} else {
			item.Password = plaintext
		}
		items = append(items, item)
	}
	return items, nil
}

// ChangePassword appends password as the new current secret of accountName.
// A password already present anywhere in the history is rejected with
// ErrPasswordReused. The comparison runs on decoded plaintexts because the
// sealed codec does not encode deterministically.
func (s *VaultService) ChangePassword(ctx context.Context, accountName, password string) (model.CredentialEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[accountName]
	if !ok {
		return model.CredentialEntry{}, fmt.Errorf("change password %q: %w", accountName, ErrAccountNotFound)
	}

	if s.previouslyUsed(entry, password) {
		return model.CredentialEntry{}, fmt.Errorf("change password %q: %w", accountName, ErrPasswordReused)
	}

	encoded, err := s.codec.Encode(password)
	if err != nil {
		return model.CredentialEntry{}, fmt.Errorf("encode password for %q: %w", accountName, err)
	}

	updated := entry.Clone()
	updated.AddSecretToHistory(encoded)

	next := maps.Clone(s.entries)
	next[accountName] = updated
	if err := s.commit(ctx, "change password", next); err != nil {
		return model.CredentialEntry{}, err
	}

	s.logger.Info("password changed", "account", accountName, "history_length", len(updated.SecretHistory))
	return updated.Clone(), nil
}

// PasswordStrength classifies password. It does not touch the vault.
func (s *VaultService) PasswordStrength(password string) model.PasswordStrength {
	return ClassifyStrength(password)
}

// GeneratePassword returns a fresh random password.
func (s *VaultService) GeneratePassword() (string, error) {
	return s.generator.Generate()
}

func (s *VaultService) previouslyUsed(entry model.CredentialEntry, password string) bool {
	for i, stored := range entry.SecretHistory {
		plaintext, err := s.codec.Decode(stored)
		if err != nil {
			s.logger.Debug("skipping undecodable history entry", "account", entry.AccountName, "position", i)
			continue
		}
		if plaintext == password {
			return true
		}
	}
	return false
}

// commit persists next and, on success, makes it the live state.
// Must be called with s.mu held.
func (s *VaultService) commit(ctx context.Context, op string, next map[string]model.CredentialEntry) error {
	if err := s.snapshots.Save(ctx, sortedEntries(next)); err != nil {
		s.logger.Error("vault save failed", "op", op, "error", err)
		return &PersistenceError{Op: op, Err: err}
	}
	s.entries = next
	return nil
}

func sortedEntries(entries map[string]model.CredentialEntry) []model.CredentialEntry {
	out := slices.Collect(maps.Values(entries))
	slices.SortFunc(out, func(a, b model.CredentialEntry) int {
		return cmp.Compare(a.AccountName, b.AccountName)
	})
	return out
}
