package application_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/codec"
	"github.com/ericfisherdev/credvault/internal/adapter/driven/snapshotfile"
	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockSnapshotStore records saves in memory and can be told to fail.
type mockSnapshotStore struct {
	mu      sync.Mutex
	loaded  []model.CredentialEntry
	loadErr error
	saveErr error
	saves   [][]model.CredentialEntry
}

func (m *mockSnapshotStore) Save(_ context.Context, entries []model.CredentialEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, entries)
	return nil
}

func (m *mockSnapshotStore) Load(_ context.Context) ([]model.CredentialEntry, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.loaded, nil
}

func (m *mockSnapshotStore) lastSave(t *testing.T) []model.CredentialEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.saves, "expected at least one save")
	return m.saves[len(m.saves)-1]
}

func (m *mockSnapshotStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

// --- Test helpers ---

var discardLogger = slog.New(slog.DiscardHandler)

func encode(t *testing.T, plaintext string) string {
	t.Helper()
	s, err := codec.Base64{}.Encode(plaintext)
	require.NoError(t, err)
	return s
}

func openTestVault(t *testing.T, store *mockSnapshotStore) *application.VaultService {
	t.Helper()
	if store.loadErr == nil && store.loaded == nil {
		store.loadErr = driven.ErrSnapshotNotFound
	}
	return application.OpenVault(context.Background(), store, codec.Base64{}, nil, discardLogger)
}

// --- Tests ---

func TestOpenVault_StartsEmptyOnLoadFailure(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
	}{
		{name: "no snapshot yet", loadErr: driven.ErrSnapshotNotFound},
		{name: "corrupt snapshot", loadErr: driven.ErrSnapshotCorrupt},
		{name: "unreadable snapshot", loadErr: errors.New("permission denied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockSnapshotStore{loadErr: tt.loadErr}
			svc := application.OpenVault(context.Background(), store, codec.Base64{}, nil, discardLogger)

			require.NotNil(t, svc)
			assert.Empty(t, svc.List())
			assert.Zero(t, store.saveCount(), "opening must not write")
		})
	}
}

func TestOpenVault_LoadsSnapshot(t *testing.T) {
	store := &mockSnapshotStore{loaded: []model.CredentialEntry{
		{AccountName: "mail", Username: "bob", SecretHistory: []string{encode(t, "one"), encode(t, "two")}},
	}}
	svc := openTestVault(t, store)

	entry, err := svc.Retrieve("mail")
	require.NoError(t, err)
	assert.Equal(t, "bob", entry.Username)
	assert.Len(t, entry.SecretHistory, 2)
}

func TestOpenVault_RejectsInvalidSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.CredentialEntry
	}{
		{
			name:    "empty account name",
			entries: []model.CredentialEntry{{AccountName: "", SecretHistory: []string{"eA=="}}},
		},
		{
			name:    "empty history",
			entries: []model.CredentialEntry{{AccountName: "mail", Username: "bob"}},
		},
		{
			name: "duplicate account",
			entries: []model.CredentialEntry{
				{AccountName: "mail", SecretHistory: []string{"eA=="}},
				{AccountName: "mail", SecretHistory: []string{"eQ=="}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := openTestVault(t, &mockSnapshotStore{loaded: tt.entries})
			assert.Empty(t, svc.List())
		})
	}
}

func TestVaultService_Add(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	entry, err := svc.Add(ctx, "mail", "bob", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "mail", entry.AccountName)
	assert.Equal(t, []string{encode(t, "hunter2")}, entry.SecretHistory)

	require.Equal(t, 1, store.saveCount(), "add should flush exactly once")
	saved := store.lastSave(t)
	require.Len(t, saved, 1)
	assert.Equal(t, entry, saved[0])
}

func TestVaultService_AddDuplicateLeavesStateUnchanged(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "first")
	require.NoError(t, err)

	_, err = svc.Add(ctx, "mail", "mallory", "second")
	require.ErrorIs(t, err, application.ErrDuplicateAccount)

	entry, err := svc.Retrieve("mail")
	require.NoError(t, err)
	assert.Equal(t, "bob", entry.Username)
	assert.Equal(t, []string{encode(t, "first")}, entry.SecretHistory)
	assert.Equal(t, 1, store.saveCount(), "rejected add must not write")
}

func TestVaultService_AddEmptyAccountName(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)

	_, err := svc.Add(context.Background(), "", "bob", "pw")
	assert.ErrorIs(t, err, application.ErrInvalidAccountName)
	assert.Zero(t, store.saveCount())
}

func TestVaultService_AddSaveFailureIsNotCommitted(t *testing.T) {
	diskFull := errors.New("no space left on device")
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	store.saveErr = diskFull
	_, err := svc.Add(ctx, "mail", "bob", "pw")
	require.Error(t, err)

	var perr *application.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "add", perr.Op)
	assert.ErrorIs(t, err, diskFull)

	_, err = svc.Retrieve("mail")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)

	store.saveErr = nil
	_, err = svc.Add(ctx, "mail", "bob", "pw")
	assert.NoError(t, err, "a failed add must not block a retry")
}

func TestVaultService_RetrieveReturnsCopy(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})
	_, err := svc.Add(context.Background(), "mail", "bob", "pw")
	require.NoError(t, err)

	entry, err := svc.Retrieve("mail")
	require.NoError(t, err)
	entry.SecretHistory[0] = "tampered"
	entry.AddSecretToHistory("extra")

	again, err := svc.Retrieve("mail")
	require.NoError(t, err)
	assert.Equal(t, []string{encode(t, "pw")}, again.SecretHistory)
}

func TestVaultService_RetrieveMissing(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})

	_, err := svc.Retrieve("nope")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
}

func TestVaultService_CurrentPassword(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "first")
	require.NoError(t, err)
	_, err = svc.ChangePassword(ctx, "mail", "second")
	require.NoError(t, err)

	pw, err := svc.CurrentPassword("mail")
	require.NoError(t, err)
	assert.Equal(t, "second", pw)

	_, err = svc.CurrentPassword("nope")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
}

func TestVaultService_DeleteThenRetrieve(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "mail"))

	_, err = svc.Retrieve("mail")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
	assert.Equal(t, 2, store.saveCount())
	assert.Empty(t, store.lastSave(t))
}

func TestVaultService_DeleteMissing(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)

	err := svc.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
	assert.Zero(t, store.saveCount())
}

func TestVaultService_DeleteSaveFailureKeepsAccount(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "pw")
	require.NoError(t, err)

	store.saveErr = errors.New("read-only file system")
	err = svc.Delete(ctx, "mail")

	var perr *application.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "delete", perr.Op)

	_, err = svc.Retrieve("mail")
	assert.NoError(t, err)
}

func TestVaultService_List(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})
	ctx := context.Background()

	assert.Empty(t, svc.List())

	for _, a := range []struct{ account, user string }{
		{"mail", "bob"}, {"bank", "alice"}, {"chat", "carol"},
	} {
		_, err := svc.Add(ctx, a.account, a.user, "pw")
		require.NoError(t, err)
	}

	assert.ElementsMatch(t, []model.AccountSummary{
		{AccountName: "bank", Username: "alice"},
		{AccountName: "chat", Username: "carol"},
		{AccountName: "mail", Username: "bob"},
	}, svc.List())
}

func TestVaultService_ViewHistory(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "one")
	require.NoError(t, err)
	_, err = svc.ChangePassword(ctx, "mail", "two")
	require.NoError(t, err)
	_, err = svc.ChangePassword(ctx, "mail", "three")
	require.NoError(t, err)

	items, err := svc.ViewHistory("mail")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, want := range []string{"one", "two", "three"} {
		assert.Equal(t, i, items[i].Position)
		assert.Equal(t, want, items[i].Password)
		assert.NoError(t, items[i].Err)
	}
}

func TestVaultService_ViewHistoryReportsDecodeErrorsPerItem(t *testing.T) {
	store := &mockSnapshotStore{loaded: []model.CredentialEntry{
		{AccountName: "mail", Username: "bob", SecretHistory: []string{encode(t, "one"), "%%%not-base64%%%", encode(t, "three")}},
	}}
	svc := openTestVault(t, store)

	items, err := svc.ViewHistory("mail")
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "one", items[0].Password)
	assert.ErrorIs(t, items[1].Err, driven.ErrMalformedSecret)
	assert.Empty(t, items[1].Password)
	assert.Equal(t, "three", items[2].Password)
}

func TestVaultService_ViewHistoryMissing(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})

	_, err := svc.ViewHistory("nope")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
}

func TestVaultService_ChangePassword(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "one")
	require.NoError(t, err)

	entry, err := svc.ChangePassword(ctx, "mail", "two")
	require.NoError(t, err)
	assert.Equal(t, []string{encode(t, "one"), encode(t, "two")}, entry.SecretHistory)
	assert.Equal(t, encode(t, "two"), entry.LatestSecret())
	assert.Equal(t, entry, store.lastSave(t)[0])
}

func TestVaultService_ChangePasswordRejectsReuse(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "one")
	require.NoError(t, err)
	_, err = svc.ChangePassword(ctx, "mail", "two")
	require.NoError(t, err)

	for _, reused := range []string{"one", "two"} {
		_, err = svc.ChangePassword(ctx, "mail", reused)
		assert.ErrorIs(t, err, application.ErrPasswordReused, reused)
	}

	entry, err := svc.Retrieve("mail")
	require.NoError(t, err)
	assert.Len(t, entry.SecretHistory, 2)
	assert.Equal(t, 2, store.saveCount())
}

func TestVaultService_ChangePasswordRejectsReuseWithSealedCodec(t *testing.T) {
	sealed, err := codec.NewSealed(make([]byte, 32))
	require.NoError(t, err)
	svc := application.OpenVault(context.Background(),
		&mockSnapshotStore{loadErr: driven.ErrSnapshotNotFound}, sealed, nil, discardLogger)
	ctx := context.Background()

	_, err = svc.Add(ctx, "mail", "bob", "one")
	require.NoError(t, err)

	_, err = svc.ChangePassword(ctx, "mail", "one")
	assert.ErrorIs(t, err, application.ErrPasswordReused)
}

func TestVaultService_ChangePasswordMissing(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})

	_, err := svc.ChangePassword(context.Background(), "nope", "pw")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
}

func TestVaultService_ChangePasswordSaveFailureIsNotCommitted(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "one")
	require.NoError(t, err)

	store.saveErr = errors.New("io error")
	_, err = svc.ChangePassword(ctx, "mail", "two")
	var perr *application.PersistenceError
	require.ErrorAs(t, err, &perr)

	entry, err := svc.Retrieve("mail")
	require.NoError(t, err)
	assert.Equal(t, []string{encode(t, "one")}, entry.SecretHistory)
}

func TestVaultService_ConcurrentAddSameAccount(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := openTestVault(t, store)
	ctx := context.Background()

	const goroutines = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, "shared", "user", "pw")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, application.ErrDuplicateAccount):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, goroutines-1, dupes)
	assert.Equal(t, 1, store.saveCount())
}

func TestVaultService_RetrieveWithPassword(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "first")
	require.NoError(t, err)
	_, err = svc.ChangePassword(ctx, "mail", "second")
	require.NoError(t, err)

	entry, pw, err := svc.RetrieveWithPassword("mail")
	require.NoError(t, err)
	assert.Equal(t, "second", pw)
	assert.Equal(t, "bob", entry.Username)
	assert.Equal(t, []string{encode(t, "first"), encode(t, "second")}, entry.SecretHistory)

	_, _, err = svc.RetrieveWithPassword("nope")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
}

func TestVaultService_RetrieveWithPasswordConsistentDuringChanges(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})
	ctx := context.Background()

	_, err := svc.Add(ctx, "mail", "bob", "pw-0")
	require.NoError(t, err)

	const changes = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= changes; i++ {
			_, err := svc.ChangePassword(ctx, "mail", fmt.Sprintf("pw-%d", i))
			assert.NoError(t, err)
		}
	}()

	for {
		entry, pw, err := svc.RetrieveWithPassword("mail")
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("pw-%d", len(entry.SecretHistory)-1), pw,
			"password must be the latest secret of the returned history")

		select {
		case <-done:
			entry, pw, err = svc.RetrieveWithPassword("mail")
			require.NoError(t, err)
			assert.Len(t, entry.SecretHistory, changes+1)
			assert.Equal(t, fmt.Sprintf("pw-%d", changes), pw)
			return
		default:
		}
	}
}

func TestVaultService_PasswordStrengthAndGenerate(t *testing.T) {
	svc := openTestVault(t, &mockSnapshotStore{})

	assert.Equal(t, model.PasswordStrengthStrong, svc.PasswordStrength("Abcdef123!"))

	pw, err := svc.GeneratePassword()
	require.NoError(t, err)
	assert.Len(t, pw, application.GeneratedPasswordLength)
}

func TestVaultService_PersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	ctx := context.Background()

	first := application.OpenVault(ctx, snapshotfile.New(path), codec.Base64{}, nil, discardLogger)
	_, err := first.Add(ctx, "mail", "bob", "one")
	require.NoError(t, err)
	_, err = first.ChangePassword(ctx, "mail", "two")
	require.NoError(t, err)
	_, err = first.Add(ctx, "bank", "alice", "vault-pw")
	require.NoError(t, err)
	_, err = first.Add(ctx, "tmp", "eve", "gone")
	require.NoError(t, err)
	require.NoError(t, first.Delete(ctx, "tmp"))

	second := application.OpenVault(ctx, snapshotfile.New(path), codec.Base64{}, nil, discardLogger)

	assert.ElementsMatch(t, first.List(), second.List())

	items, err := second.ViewHistory("mail")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "one", items[0].Password)
	assert.Equal(t, "two", items[1].Password)

	pw, err := second.CurrentPassword("bank")
	require.NoError(t, err)
	assert.Equal(t, "vault-pw", pw)

	_, err = second.Retrieve("tmp")
	assert.ErrorIs(t, err, application.ErrAccountNotFound)
}
