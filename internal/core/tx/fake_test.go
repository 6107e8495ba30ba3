package tx

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// recordingResource hands out fakeHandles and records every call made on them.
type recordingResource struct {
	calls   []string
	handles []*fakeHandle

	beginErr    error
	commitErr   error
	rollbackErr error
}

func (r *recordingResource) Begin(_ context.Context, def Definition) (Handle, error) {
	if r.beginErr != nil {
		r.calls = append(r.calls, "begin!")
		return nil, r.beginErr
	}
	h := &fakeHandle{res: r, n: len(r.handles) + 1, state: StateActive, def: def}
	r.handles = append(r.handles, h)
	r.record(h, "begin")
	return h, nil
}

func (r *recordingResource) record(h *fakeHandle, op string) {
	r.calls = append(r.calls, fmt.Sprintf("%s#%d", op, h.n))
}

func (r *recordingResource) count(op string) int {
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, op+"#") {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	res   *recordingResource
	n     int
	state State
	def   Definition
}

func (h *fakeHandle) Commit(context.Context) error {
	if h.state != StateActive {
		return errors.New("commit on finished transaction")
	}
	h.res.record(h, "commit")
	if h.res.commitErr != nil {
		if errors.Is(h.res.commitErr, ErrCommitRolledBack) {
			h.state = StateRolledBack
		}
		return h.res.commitErr
	}
	h.state = StateCommitted
	return nil
}

func (h *fakeHandle) Rollback(context.Context) error {
	if h.state != StateActive {
		return errors.New("rollback on finished transaction")
	}
	h.res.record(h, "rollback")
	if h.res.rollbackErr != nil {
		return h.res.rollbackErr
	}
	h.state = StateRolledBack
	return nil
}

func (h *fakeHandle) Savepoint(_ context.Context, name string) error {
	h.res.calls = append(h.res.calls, fmt.Sprintf("savepoint#%d:%s", h.n, name))
	return nil
}

func (h *fakeHandle) RollbackToSavepoint(_ context.Context, name string) error {
	h.res.calls = append(h.res.calls, fmt.Sprintf("rollback_to#%d:%s", h.n, name))
	return nil
}

func (h *fakeHandle) ReleaseSavepoint(_ context.Context, name string) error {
	h.res.calls = append(h.res.calls, fmt.Sprintf("release#%d:%s", h.n, name))
	return nil
}

func (h *fakeHandle) IsActive() bool { return h.state == StateActive }
