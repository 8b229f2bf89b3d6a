package models

import "time"

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// CheckResult is what one table check reports back to its scheduler.
type CheckResult struct {
	TableName string  `json:"table_name"`
	RunID     string  `json:"run_id"`
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
	Detected  int     `json:"detected"`
	Applied   int     `json:"applied"`
	Skipped   int     `json:"skipped"`
}

type TableStatus struct {
	TableName     string    `json:"table_name"`
	Status        string    `json:"status"`
	Outcome       Outcome   `json:"outcome,omitempty"`
	Detected      int       `json:"detected"`
	Applied       int       `json:"applied"`
	Skipped       int       `json:"skipped"`
	LastCheckTime time.Time `json:"last_check_time"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}
