package memory

import (
	"context"
	"fmt"

	"txscope/internal/core/id"
	"txscope/internal/core/tx"
)

// Handle is one physical transaction of a Store.
type Handle struct {
	id       id.ID
	store    *Store
	state    tx.State
	readOnly bool

	writes     []mutation
	savepoints map[string]int
}

// Compile-time check that Handle implements tx.Handle.
var _ tx.Handle = (*Handle)(nil)

// ID returns the transaction id.
func (h *Handle) ID() id.ID { return h.id }

// State returns the transaction state.
func (h *Handle) State() tx.State { return h.state }

// IsActive reports whether the transaction can still be used.
func (h *Handle) IsActive() bool { return h.state == tx.StateActive }

func (h *Handle) checkActive(op string) error {
	if h.state != tx.StateActive {
		return fmt.Errorf("%s: transaction is %s", op, h.state)
	}
	return nil
}

func (h *Handle) buffer(m mutation) error {
	if err := h.checkActive("write"); err != nil {
		return err
	}
	if h.readOnly {
		return ErrReadOnly
	}
	h.writes = append(h.writes, m)
	return nil
}

// Commit applies buffered writes atomically.
func (h *Handle) Commit(context.Context) error {
	if err := h.checkActive("commit"); err != nil {
		return err
	}
	h.store.mu.Lock()
	h.store.apply(h.writes)
	h.store.mu.Unlock()

	h.writes = nil
	h.state = tx.StateCommitted
	h.store.commits.Add(1)
	return nil
}

// Rollback discards buffered writes.
func (h *Handle) Rollback(context.Context) error {
	if err := h.checkActive("rollback"); err != nil {
		return err
	}
	h.writes = nil
	h.state = tx.StateRolledBack
	h.store.rollbacks.Add(1)
	return nil
}

// Savepoint records the current write position under name.
func (h *Handle) Savepoint(_ context.Context, name string) error {
	if err := h.checkActive("savepoint"); err != nil {
		return err
	}
	h.savepoints[name] = len(h.writes)
	return nil
}

// RollbackToSavepoint discards writes made after the savepoint. The savepoint
// itself stays defined.
func (h *Handle) RollbackToSavepoint(_ context.Context, name string) error {
	if err := h.checkActive("rollback to savepoint"); err != nil {
		return err
	}
	mark, ok := h.savepoints[name]
	if !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	h.writes = h.writes[:mark]
	for sp, pos := range h.savepoints {
		if pos > mark {
			delete(h.savepoints, sp)
		}
	}
	return nil
}

// ReleaseSavepoint forgets the savepoint, keeping its writes.
func (h *Handle) ReleaseSavepoint(_ context.Context, name string) error {
	if err := h.checkActive("release savepoint"); err != nil {
		return err
	}
	if _, ok := h.savepoints[name]; !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	delete(h.savepoints, name)
	return nil
}
