// Package memory provides an in-process transactional key-value store.
//
// Store implements tx.Resource: every physical transaction buffers its writes
// and applies them atomically on commit. Reads inside a transaction see the
// transaction's own writes on top of committed data. Writes outside any
// transaction are applied immediately (autocommit).
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"txscope/internal/core/id"
	"txscope/internal/core/tx"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("key not found")

// ErrReadOnly is returned on writes inside a read-only transaction.
var ErrReadOnly = errors.New("write in read-only transaction")

// Compile-time check that Store implements tx.Resource.
var _ tx.Resource = (*Store)(nil)

// Stats counts physical transaction events.
type Stats struct {
	Begins    int64
	Commits   int64
	Rollbacks int64
}

// Store is a transactional in-memory key-value store.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte

	begins    atomic.Int64
	commits   atomic.Int64
	rollbacks atomic.Int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{tables: make(map[string]map[string][]byte)}
}

// Begin starts a physical transaction.
func (s *Store) Begin(_ context.Context, def tx.Definition) (tx.Handle, error) {
	s.begins.Add(1)
	return &Handle{
		id:         id.New(),
		store:      s,
		state:      tx.StateActive,
		readOnly:   def.ReadOnly,
		savepoints: make(map[string]int),
	}, nil
}

// Stats returns a snapshot of the counters.
func (s *Store) Stats() Stats {
	return Stats{
		Begins:    s.begins.Load(),
		Commits:   s.commits.Load(),
		Rollbacks: s.rollbacks.Load(),
	}
}

// handle returns the transaction of this store in force for ctx, if any.
func (s *Store) handle(ctx context.Context) *Handle {
	if h, ok := tx.ActiveHandle(ctx).(*Handle); ok && h.store == s {
		return h
	}
	return nil
}

// Put stores value (JSON-encoded) under table/key.
func (s *Store) Put(ctx context.Context, table, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", table, key, err)
	}
	return s.write(ctx, mutation{table: table, key: key, value: data})
}

// Delete removes table/key.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	return s.write(ctx, mutation{table: table, key: key, deleted: true})
}

func (s *Store) write(ctx context.Context, m mutation) error {
	if h := s.handle(ctx); h != nil {
		return h.buffer(m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply([]mutation{m})
	return nil
}

// Get decodes the value under table/key into dst.
func (s *Store) Get(ctx context.Context, table, key string, dst any) error {
	data, ok := s.lookup(ctx, table, key)
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s/%s: %w", table, key, err)
	}
	return nil
}

// Keys returns the visible keys of table in sorted order.
func (s *Store) Keys(ctx context.Context, table string) []string {
	s.mu.RLock()
	visible := make(map[string]bool, len(s.tables[table]))
	for k := range s.tables[table] {
		visible[k] = true
	}
	s.mu.RUnlock()

	if h := s.handle(ctx); h != nil {
		for _, m := range h.writes {
			if m.table == table {
				visible[m.key] = !m.deleted
			}
		}
	}

	keys := make([]string, 0, len(visible))
	for k, ok := range visible {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) lookup(ctx context.Context, table, key string) ([]byte, bool) {
	if h := s.handle(ctx); h != nil {
		for i := len(h.writes) - 1; i >= 0; i-- {
			m := h.writes[i]
			if m.table == table && m.key == key {
				return m.value, !m.deleted
			}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.tables[table][key]
	return data, ok
}

// apply must be called with mu held.
func (s *Store) apply(writes []mutation) {
	for _, m := range writes {
		rows := s.tables[m.table]
		if rows == nil {
			rows = make(map[string][]byte)
			s.tables[m.table] = rows
		}
		if m.deleted {
			delete(rows, m.key)
			continue
		}
		rows[m.key] = m.value
	}
}

type mutation struct {
	table   string
	key     string
	value   []byte
	deleted bool
}
