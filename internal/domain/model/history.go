package model

// HistoryItem is one decoded element of an account's secret history.
// Position is zero-based and chronological. Exactly one of Password and Err
// is meaningful: a stored secret that fails to decode yields Err and leaves
// the other items unaffected.
type HistoryItem struct {
	Position int
	Password string
	Err      error
}
