package application

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by VaultService. They are expected outcomes and
// callers are meant to branch on them with errors.Is.
var (
	// ErrDuplicateAccount indicates an add with an account name already in the vault.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrAccountNotFound indicates the requested account is not in the vault.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAccountName indicates an empty account name.
	ErrInvalidAccountName = errors.New("account name must not be empty")

	// ErrPasswordReused indicates a password change to a secret already in the history.
	ErrPasswordReused = errors.New("password was used before for this account")
)

// PersistenceError reports a failed durable write. The mutation that caused
// it was not committed to memory.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist vault after %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
