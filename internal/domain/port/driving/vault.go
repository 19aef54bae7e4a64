// Package driving defines primary port interfaces consumed by presentation adapters.
package driving

import (
	"context"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// Vault is the complete operation set available to the console and HTTP
// adapters. Returned entries are copies; mutating them has no effect on the vault.
type Vault interface {
	Add(ctx context.Context, accountName, username, password string) (model.CredentialEntry, error)
	Retrieve(accountName string) (model.CredentialEntry, error)
	CurrentPassword(accountName string) (string, error)
	RetrieveWithPassword(accountName string) (model.CredentialEntry, string, error)
	Delete(ctx context.Context, accountName string) error
	List() []model.AccountSummary
	ViewHistory(accountName string) ([]model.HistoryItem, error)
	ChangePassword(ctx context.Context, accountName, password string) (model.CredentialEntry, error)
	PasswordStrength(password string) model.PasswordStrength
	GeneratePassword() (string, error)
}
