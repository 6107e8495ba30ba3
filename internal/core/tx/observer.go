package tx

import (
	"context"
	"time"

	"txscope/internal/core/id"
)

// Participant describes a scope that joined a physical transaction.
type Participant struct {
	ScopeID      id.ID       `json:"scopeId"`
	Name         string      `json:"name,omitempty"`
	Propagation  Propagation `json:"propagation"`
	Savepoint    bool        `json:"savepoint,omitempty"`
	RollbackOnly bool        `json:"rollbackOnly,omitempty"`
	Failure      string      `json:"failure,omitempty"`
}

// Report summarizes one finished physical transaction.
type Report struct {
	ScopeID      id.ID
	Name         string
	Propagation  Propagation
	Isolation    IsolationLevel
	Outcome      Outcome
	Unexpected   bool
	Cause        string
	Participants []Participant
	StartedAt    time.Time
	Duration     time.Duration
	Err          error
}

// Observer is notified after every physical commit or rollback.
// It runs outside the finished transaction and must not open scopes on the
// same flow.
type Observer interface {
	TransactionFinished(ctx context.Context, report Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, report Report)

// TransactionFinished calls f.
func (f ObserverFunc) TransactionFinished(ctx context.Context, report Report) {
	f(ctx, report)
}

// Observers fans a report out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	var list []Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return ObserverFunc(func(ctx context.Context, report Report) {
		for _, o := range list {
			o.TransactionFinished(ctx, report)
		}
	})
}
