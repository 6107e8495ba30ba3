package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"txscope/internal/core/id"
	"txscope/internal/core/tx"
	"txscope/pkg/logger"
)

const journalTable = "sys_tx_journal"

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// JournalEntry is one finished physical transaction.
type JournalEntry struct {
	ID                     id.ID           `db:"id" json:"id"`
	ScopeID                id.ID           `db:"scope_id" json:"scopeId"`
	Name                   string          `db:"name" json:"name"`
	Propagation            string          `db:"propagation" json:"propagation"`
	Isolation              string          `db:"isolation" json:"isolation,omitempty"`
	Outcome                string          `db:"outcome" json:"outcome"`
	Unexpected             bool            `db:"unexpected" json:"unexpected"`
	Cause                  string          `db:"cause" json:"cause,omitempty"`
	Participants           json.RawMessage `db:"participants" json:"participants,omitempty"`
	ParticipantsCompressed []byte          `db:"participants_compressed" json:"-"`
	CompressionAlgo        CompressionAlgo `db:"compression_algo" json:"-"`
	Error                  string          `db:"error" json:"error,omitempty"`
	StartedAt              time.Time       `db:"started_at" json:"startedAt"`
	DurationMs             int64           `db:"duration_ms" json:"durationMs"`
	CreatedAt              time.Time       `db:"created_at" json:"createdAt"`
}

// Journal persists a row per finished physical transaction. It writes through
// its own connection, never through the transaction it records.
type Journal struct {
	db                Querier
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// Compile-time check that Journal implements tx.Observer.
var _ tx.Observer = (*Journal)(nil)

// NewJournal creates a journal writing to db. Participant lists larger than
// compressThreshold bytes are stored zstd-compressed (0 = 4KB).
func NewJournal(db Querier, compressThreshold int) (*Journal, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if compressThreshold <= 0 {
		compressThreshold = 4 * 1024
	}
	return &Journal{
		db:                db,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// TransactionFinished records the report. Write failures are logged.
func (j *Journal) TransactionFinished(ctx context.Context, report tx.Report) {
	if err := j.Record(ctx, report); err != nil {
		logger.Error(ctx, "record transaction journal entry failed",
			"scope_id", report.ScopeID,
			"error", err,
		)
	}
}

// Record inserts the journal entry for report.
func (j *Journal) Record(ctx context.Context, report tx.Report) error {
	entry, err := j.entryFor(report)
	if err != nil {
		return err
	}

	sql, args, err := Builder().
		Insert(journalTable).
		SetMap(Values(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := j.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", journalTable, err)
	}
	return nil
}

func (j *Journal) entryFor(report tx.Report) (JournalEntry, error) {
	entry := JournalEntry{
		ID:              id.New(),
		ScopeID:         report.ScopeID,
		Name:            report.Name,
		Propagation:     report.Propagation.String(),
		Isolation:       string(report.Isolation),
		Outcome:         report.Outcome.String(),
		Unexpected:      report.Unexpected,
		Cause:           report.Cause,
		CompressionAlgo: CompressionNone,
		StartedAt:       report.StartedAt,
		DurationMs:      report.Duration.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}
	if report.Err != nil {
		entry.Error = report.Err.Error()
	}

	if len(report.Participants) > 0 {
		payload, err := json.Marshal(report.Participants)
		if err != nil {
			return entry, fmt.Errorf("marshal participants: %w", err)
		}
		if len(payload) > j.compressThreshold {
			entry.ParticipantsCompressed = j.encoder.EncodeAll(payload, nil)
			entry.CompressionAlgo = CompressionZstd
		} else {
			entry.Participants = payload
		}
	}
	return entry, nil
}

// Recent returns the newest entries, decompressing participant lists.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := Builder().
		Select(Columns[JournalEntry]()...).
		From(journalTable).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []JournalEntry
	if err := pgxscan.Select(ctx, j.db, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		if e.CompressionAlgo == CompressionZstd && len(e.ParticipantsCompressed) > 0 {
			decompressed, err := j.decoder.DecodeAll(e.ParticipantsCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress participants: %w", err)
			}
			e.Participants = decompressed
			e.ParticipantsCompressed = nil
		}
	}
	return entries, nil
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}
