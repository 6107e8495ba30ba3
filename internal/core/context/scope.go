package context

import (
	"context"
)

// ScopeInfo describes the innermost transaction scope a call runs in.
// It is informational only (logging); the engine keeps its own state.
type ScopeInfo struct {
	ScopeID     string
	Propagation string
	Depth       int
}

type scopeInfoKey struct{}

// WithScopeInfo adds ScopeInfo to context.
func WithScopeInfo(ctx context.Context, info *ScopeInfo) context.Context {
	return context.WithValue(ctx, scopeInfoKey{}, info)
}

// GetScopeInfo returns ScopeInfo from context.
func GetScopeInfo(ctx context.Context) *ScopeInfo {
	if v, ok := ctx.Value(scopeInfoKey{}).(*ScopeInfo); ok {
		return v
	}
	return nil
}
