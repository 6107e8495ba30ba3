package dto

import (
	"time"

	"txscope/internal/core/tx"
)

// TransactionResponse describes one finished physical transaction.
type TransactionResponse struct {
	ScopeID      string           `json:"scopeId"`
	Name         string           `json:"name"`
	Propagation  string           `json:"propagation"`
	Outcome      string           `json:"outcome"`
	Unexpected   bool             `json:"unexpected"`
	Cause        string           `json:"cause,omitempty"`
	Participants []tx.Participant `json:"participants,omitempty"`
	StartedAt    time.Time        `json:"startedAt"`
	DurationMs   int64            `json:"durationMs"`
	Error        string           `json:"error,omitempty"`
}

// FromReport converts an observer report.
func FromReport(r tx.Report) TransactionResponse {
	resp := TransactionResponse{
		ScopeID:      r.ScopeID.String(),
		Name:         r.Name,
		Propagation:  r.Propagation.String(),
		Outcome:      r.Outcome.String(),
		Unexpected:   r.Unexpected,
		Cause:        r.Cause,
		Participants: r.Participants,
		StartedAt:    r.StartedAt,
		DurationMs:   r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}
