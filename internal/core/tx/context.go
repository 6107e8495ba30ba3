package tx

import (
	"context"
	"fmt"
)

// Context is the flow-local stack of open scopes together with the physical
// transaction currently in force.
//
// A Context belongs to exactly one logical execution flow. It is not safe for
// concurrent use: goroutines spawned inside a scope must not open or close
// scopes on the parent's Context. Give them their own with WithContext.
type Context struct {
	stack  []*Scope
	active Handle

	savepoints int
}

// NewContext returns an empty transaction context.
func NewContext() *Context {
	return &Context{}
}

type contextKey struct{}

// WithContext attaches c to ctx. Scopes opened with the returned context (and
// contexts derived from it) share c.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the transaction context attached to ctx, or nil.
func FromContext(ctx context.Context) *Context {
	if c, ok := ctx.Value(contextKey{}).(*Context); ok {
		return c
	}
	return nil
}

// ActiveHandle returns the physical transaction in force for ctx's flow,
// or nil when no scope is open.
func ActiveHandle(ctx context.Context) Handle {
	if c := FromContext(ctx); c != nil {
		return c.active
	}
	return nil
}

// CurrentScope returns the innermost open scope of ctx's flow, or nil.
func CurrentScope(ctx context.Context) *Scope {
	if c := FromContext(ctx); c != nil {
		return c.Top()
	}
	return nil
}

// Depth returns the number of open scopes.
func (c *Context) Depth() int {
	return len(c.stack)
}

// Top returns the innermost open scope, or nil.
func (c *Context) Top() *Scope {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// Active returns the physical transaction in force, or nil.
func (c *Context) Active() Handle {
	return c.active
}

// Scopes returns a copy of the open scopes, outermost first.
func (c *Context) Scopes() []*Scope {
	out := make([]*Scope, len(c.stack))
	copy(out, c.stack)
	return out
}

func (c *Context) push(s *Scope) {
	c.stack = append(c.stack, s)
}

func (c *Context) pop() {
	c.stack[len(c.stack)-1] = nil
	c.stack = c.stack[:len(c.stack)-1]
}

func (c *Context) nextSavepoint() string {
	c.savepoints++
	return fmt.Sprintf("sp_%d", c.savepoints)
}
