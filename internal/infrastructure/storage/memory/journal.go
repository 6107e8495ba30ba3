package memory

import (
	"context"
	"sync"

	"txscope/internal/core/tx"
)

// Journal keeps the reports of finished physical transactions in memory,
// newest last, up to a fixed capacity.
type Journal struct {
	mu       sync.Mutex
	capacity int
	entries  []tx.Report
}

// Compile-time check that Journal implements tx.Observer.
var _ tx.Observer = (*Journal)(nil)

// NewJournal creates a journal holding at most capacity reports (0 = 1000).
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Journal{capacity: capacity}
}

// TransactionFinished records the report.
func (j *Journal) TransactionFinished(_ context.Context, report tx.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == j.capacity {
		j.entries = append(j.entries[:0], j.entries[1:]...)
	}
	j.entries = append(j.entries, report)
}

// Recent returns up to limit reports, newest first.
func (j *Journal) Recent(_ context.Context, limit int) []tx.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit <= 0 || limit > len(j.entries) {
		limit = len(j.entries)
	}
	out := make([]tx.Report, 0, limit)
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.entries[i])
	}
	return out
}
