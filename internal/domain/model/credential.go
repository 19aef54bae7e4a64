package model

import "slices"

// CredentialEntry is the stored record for one account. SecretHistory holds
// encoded secrets in chronological order; the last element is the current
// secret and the slice is never empty for an entry owned by the vault.
type CredentialEntry struct {
	AccountName   string
	Username      string
	SecretHistory []string
}

// NewCredentialEntry creates an entry whose history contains only encodedSecret.
func NewCredentialEntry(accountName, username, encodedSecret string) CredentialEntry {
	return CredentialEntry{
		AccountName:   accountName,
		Username:      username,
		SecretHistory: []string{encodedSecret},
	}
}

// LatestSecret returns the current encoded secret, or "" for an empty history.
func (e CredentialEntry) LatestSecret() string {
	if len(e.SecretHistory) == 0 {
		return ""
	}
	return e.SecretHistory[len(e.SecretHistory)-1]
}

// AddSecretToHistory appends encodedSecret as the new current secret.
func (e *CredentialEntry) AddSecretToHistory(encodedSecret string) {
	e.SecretHistory = append(e.SecretHistory, encodedSecret)
}

// IsSecretPreviouslyUsed reports whether encodedSecret appears anywhere in the history.
func (e CredentialEntry) IsSecretPreviouslyUsed(encodedSecret string) bool {
	return slices.Contains(e.SecretHistory, encodedSecret)
}

// Clone returns a deep copy so callers never share the history backing array.
func (e CredentialEntry) Clone() CredentialEntry {
	e.SecretHistory = slices.Clone(e.SecretHistory)
	return e
}

// AccountSummary is the listing view of an entry.
type AccountSummary struct {
	AccountName string
	Username    string
}
