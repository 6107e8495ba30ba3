// Package tx implements transaction demarcation with propagation semantics.
//
// A logical Scope is opened for every demarcation request. Scopes nest on a
// flow-local Context; the Resolver decides for each request whether to join
// the physical transaction in force, start a fresh one, or suspend the current
// one and start an independent transaction. Only the scope that started a
// physical transaction ever commits or rolls it back.
//
// The physical transaction is supplied by a Resource collaborator (see
// infrastructure/storage/postgres and infrastructure/storage/memory).
package tx

import (
	"context"
)

// Manager defines the contract for transaction demarcation used by domain services.
//
// Domain services depend on this interface, not on the Resolver or a concrete
// resource implementation.
type Manager interface {
	// RunInTransaction executes fn within a REQUIRED scope.
	// Nested calls join the physical transaction already in force.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// WithScope executes fn within a scope opened according to def.
	// The error fn returns is classified once by the rollback policy and
	// returned to the caller; close failures (UnexpectedRollback, resource
	// faults) are returned joined with it.
	WithScope(ctx context.Context, def Definition, fn func(ctx context.Context) error) error
}

// Compile-time check that Resolver implements Manager interface.
var _ Manager = (*Resolver)(nil)
