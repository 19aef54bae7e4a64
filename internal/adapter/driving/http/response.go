package httphandler

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AddAccountRequest is the JSON body for POST /api/v1/accounts.
// A Password of "generate" (any case) asks the server to generate one.
type AddAccountRequest struct {
	AccountName string  `json:"account_name"`
	Username    string  `json:"username"`
	Password    *string `json:"password"`
}

// ChangePasswordRequest is the JSON body for PUT /api/v1/accounts/{account}/password.
type ChangePasswordRequest struct {
	Password *string `json:"password"`
}

// StrengthRequest is the JSON body for POST /api/v1/passwords/strength.
type StrengthRequest struct {
	Password *string `json:"password"`
}

// AddAccountResponse confirms a stored account. GeneratedPassword is set only
// when the server generated the password.
type AddAccountResponse struct {
	AccountName       string `json:"account_name"`
	Username          string `json:"username"`
	Strength          string `json:"strength"`
	GeneratedPassword string `json:"generated_password,omitempty"`
}

// AccountSummaryResponse is one element of the account listing.
type AccountSummaryResponse struct {
	AccountName string `json:"account_name"`
	Username    string `json:"username"`
}

// AccountResponse is the detail view of an account with its current password.
type AccountResponse struct {
	AccountName   string `json:"account_name"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	HistoryLength int    `json:"history_length"`
}

// HistoryItemResponse is one decoded history element. Exactly one of
// Password and Error is set.
type HistoryItemResponse struct {
	Position int     `json:"position"`
	Password *string `json:"password,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// ChangePasswordResponse confirms a password change.
type ChangePasswordResponse struct {
	AccountName       string `json:"account_name"`
	HistoryLength     int    `json:"history_length"`
	Strength          string `json:"strength"`
	GeneratedPassword string `json:"generated_password,omitempty"`
}

// GeneratedPasswordResponse carries a freshly generated password.
type GeneratedPasswordResponse struct {
	Password string `json:"password"`
	Strength string `json:"strength"`
}

// StrengthResponse carries a strength classification.
type StrengthResponse struct {
	Strength string `json:"strength"`
}

// HealthResponse is the JSON representation of a health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toAccountSummaryResponse(s model.AccountSummary) AccountSummaryResponse {
	return AccountSummaryResponse{AccountName: s.AccountName, Username: s.Username}
}

func toHistoryItemResponse(item model.HistoryItem) HistoryItemResponse {
	if item.Err != nil {
		return HistoryItemResponse{Position: item.Position, Error: "stored secret could not be decoded"}
	}
	pw := item.Password
	return HistoryItemResponse{Position: item.Position, Password: &pw}
}
