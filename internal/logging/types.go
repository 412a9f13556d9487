package logging

import "time"

// #region run-entry
// RunEntry is a single row in the analysis_log table.
type RunEntry struct {
	RunID      string
	SessionID  string // empty for fixture runs
	Source     string
	Completed  int // completed action occurrences
	Incomplete int
	Skipped    int
	Failures   int
	// ActionsJSON and PairsJSON hold the serialized count tables.
	ActionsJSON string
	PairsJSON   string
	CreatedAt   time.Time
}
// #endregion run-entry

// #region counts
// ActionCount is one row of RunEntry.ActionsJSON.
type ActionCount struct {
	Name       string `json:"name"`
	Completed  int    `json:"completed"`
	Incomplete int    `json:"incomplete"`
}

// PairCount is one row of RunEntry.PairsJSON.
type PairCount struct {
	Request             string `json:"request"`
	Label               string `json:"label"`
	Success             int    `json:"success"`
	SendWithoutResponse int    `json:"send_without_response"`
}
// #endregion counts
