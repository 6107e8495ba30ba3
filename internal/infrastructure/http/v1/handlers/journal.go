package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"txscope/internal/core/tx"
	"txscope/internal/infrastructure/http/v1/dto"
	"txscope/internal/infrastructure/storage/memory"
	"txscope/internal/infrastructure/storage/postgres"
)

// JournalReader lists recently finished physical transactions, newest first.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]dto.TransactionResponse, error)
}

// JournalHandler exposes the transaction journal.
type JournalHandler struct {
	*BaseHandler
	journal JournalReader
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(base *BaseHandler, journal JournalReader) *JournalHandler {
	return &JournalHandler{BaseHandler: base, journal: journal}
}

// List returns recent transactions.
// GET /v1/transactions?limit=N
func (h *JournalHandler) List(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	items, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": items})
}

// MemoryJournal adapts a memory.Journal to JournalReader.
func MemoryJournal(j *memory.Journal) JournalReader {
	return memoryJournal{j}
}

type memoryJournal struct{ j *memory.Journal }

func (m memoryJournal) Recent(ctx context.Context, limit int) ([]dto.TransactionResponse, error) {
	reports := m.j.Recent(ctx, limit)
	items := make([]dto.TransactionResponse, len(reports))
	for i, r := range reports {
		items[i] = dto.FromReport(r)
	}
	return items, nil
}

// PostgresJournal adapts a postgres.Journal to JournalReader.
func PostgresJournal(j *postgres.Journal) JournalReader {
	return postgresJournal{j}
}

type postgresJournal struct{ j *postgres.Journal }

func (p postgresJournal) Recent(ctx context.Context, limit int) ([]dto.TransactionResponse, error) {
	entries, err := p.j.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]dto.TransactionResponse, len(entries))
	for i, e := range entries {
		items[i] = dto.TransactionResponse{
			ScopeID:     e.ScopeID.String(),
			Name:        e.Name,
			Propagation: e.Propagation,
			Outcome:     e.Outcome,
			Unexpected:  e.Unexpected,
			Cause:       e.Cause,
			StartedAt:   e.StartedAt,
			DurationMs:  e.DurationMs,
			Error:       e.Error,
		}
		if len(e.Participants) > 0 {
			var participants []tx.Participant
			if err := json.Unmarshal(e.Participants, &participants); err != nil {
				return nil, fmt.Errorf("decode participants of %s: %w", e.ScopeID, err)
			}
			items[i].Participants = participants
		}
	}
	return items, nil
}
