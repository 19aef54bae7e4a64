// Package httphandler is the REST driving adapter over the vault.
package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/domain/port/driving"
)

// generateKeyword as a password value asks the server to generate one.
const generateKeyword = "generate"

// maxBodyBytes bounds request bodies; every body here is a handful of short fields.
const maxBodyBytes = 64 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	vault  driving.Vault
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(vault driving.Vault, logger *slog.Logger) *Handler {
	return &Handler{
		vault:  vault,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging, recovery and no-store middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("POST /api/v1/accounts", h.AddAccount)
	mux.HandleFunc("GET /api/v1/accounts/{account}", h.GetAccount)
	mux.HandleFunc("DELETE /api/v1/accounts/{account}", h.DeleteAccount)
	mux.HandleFunc("GET /api/v1/accounts/{account}/history", h.GetHistory)
	mux.HandleFunc("PUT /api/v1/accounts/{account}/password", h.ChangePassword)
	mux.HandleFunc("POST /api/v1/passwords/generate", h.GeneratePassword)
	mux.HandleFunc("POST /api/v1/passwords/strength", h.PasswordStrength)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = noStoreMiddleware(wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListAccounts returns the name and username of every stored account.
func (h *Handler) ListAccounts(w http.ResponseWriter, _ *http.Request) {
	summaries := h.vault.List()

	resp := make([]AccountSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toAccountSummaryResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddAccount stores a new account.
func (h *Handler) AddAccount(w http.ResponseWriter, r *http.Request) {
	var req AddAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	accountName := strings.TrimSpace(req.AccountName)
	if accountName == "" {
		writeError(w, http.StatusBadRequest, "account_name is required")
		return
	}
	if req.Password == nil {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	password, generated, ok := h.resolvePassword(w, *req.Password)
	if !ok {
		return
	}

	entry, err := h.vault.Add(r.Context(), accountName, req.Username, password)
	if err != nil {
		h.writeVaultError(w, err, "failed to add account", "account", accountName)
		return
	}

	resp := AddAccountResponse{
		AccountName: entry.AccountName,
		Username:    entry.Username,
		Strength:    string(h.vault.PasswordStrength(password)),
	}
	if generated {
		resp.GeneratedPassword = password
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetAccount returns an account with its decoded current password.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountName := r.PathValue("account")

	entry, password, err := h.vault.RetrieveWithPassword(accountName)
	if err != nil {
		h.writeVaultError(w, err, "failed to retrieve account", "account", accountName)
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		AccountName:   entry.AccountName,
		Username:      entry.Username,
		Password:      password,
		HistoryLength: len(entry.SecretHistory),
	})
}

// DeleteAccount removes an account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountName := r.PathValue("account")

	if err := h.vault.Delete(r.Context(), accountName); err != nil {
		h.writeVaultError(w, err, "failed to delete account", "account", accountName)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns the decoded password history of an account, oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountName := r.PathValue("account")

	items, err := h.vault.ViewHistory(accountName)
	if err != nil {
		h.writeVaultError(w, err, "failed to view history", "account", accountName)
		return
	}

	resp := make([]HistoryItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toHistoryItemResponse(item))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ChangePassword appends a new current password to an account's history.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountName := r.PathValue("account")

	var req ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == nil {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	password, generated, ok := h.resolvePassword(w, *req.Password)
	if !ok {
		return
	}

	entry, err := h.vault.ChangePassword(r.Context(), accountName, password)
	if err != nil {
		h.writeVaultError(w, err, "failed to change password", "account", accountName)
		return
	}

	resp := ChangePasswordResponse{
		AccountName:   entry.AccountName,
		HistoryLength: len(entry.SecretHistory),
		Strength:      string(h.vault.PasswordStrength(password)),
	}
	if generated {
		resp.GeneratedPassword = password
	}

	writeJSON(w, http.StatusOK, resp)
}

// GeneratePassword returns a new random password and its strength.
func (h *Handler) GeneratePassword(w http.ResponseWriter, _ *http.Request) {
	password, err := h.vault.GeneratePassword()
	if err != nil {
		h.logger.Error("failed to generate password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, GeneratedPasswordResponse{
		Password: password,
		Strength: string(h.vault.PasswordStrength(password)),
	})
}

// PasswordStrength classifies the password in the request body.
func (h *Handler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req StrengthRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == nil {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	writeJSON(w, http.StatusOK, StrengthResponse{
		Strength: string(h.vault.PasswordStrength(*req.Password)),
	})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// resolvePassword substitutes a generated password for the "generate" keyword.
// It writes the error response itself and reports ok=false on failure.
func (h *Handler) resolvePassword(w http.ResponseWriter, requested string) (password string, generated, ok bool) {
	if !strings.EqualFold(requested, generateKeyword) {
		return requested, false, true
	}

	password, err := h.vault.GeneratePassword()
	if err != nil {
		h.logger.Error("failed to generate password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return "", false, false
	}
	return password, true, true
}

// writeVaultError maps vault errors to HTTP statuses. Unexpected errors are
// logged with the given message and attributes and reported as 500.
func (h *Handler) writeVaultError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, application.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, application.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, application.ErrPasswordReused):
		writeError(w, http.StatusConflict, "password was used before for this account")
	case errors.Is(err, application.ErrInvalidAccountName):
		writeError(w, http.StatusBadRequest, "account_name is required")
	default:
		h.logger.Error(msg, append(attrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes a bounded JSON request body into v. It writes a 400 and
// returns false when the body is not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
