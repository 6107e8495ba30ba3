package tx

import (
	"fmt"
	"strings"
	"time"
)

// Propagation governs whether a new scope joins the physical transaction in
// force or starts an independent one.
type Propagation uint8

const (
	// PropagationRequired joins the active physical transaction, or begins one
	// when none is active.
	PropagationRequired Propagation = iota

	// PropagationRequiresNew always begins a new physical transaction,
	// suspending the active one until the scope closes.
	PropagationRequiresNew

	// PropagationMandatory joins the active physical transaction and fails
	// when none is active.
	PropagationMandatory

	// PropagationNested joins the active physical transaction behind a
	// savepoint, or begins one when none is active.
	PropagationNested
)

// String renders the propagation the way it is configured.
func (p Propagation) String() string {
	switch p {
	case PropagationRequired:
		return "REQUIRED"
	case PropagationRequiresNew:
		return "REQUIRES_NEW"
	case PropagationMandatory:
		return "MANDATORY"
	case PropagationNested:
		return "NESTED"
	default:
		return fmt.Sprintf("Propagation(%d)", uint8(p))
	}
}

// MarshalText renders the propagation name in JSON and logs.
func (p Propagation) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a propagation name.
func (p *Propagation) UnmarshalText(text []byte) error {
	parsed, err := ParsePropagation(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePropagation parses a configured propagation name (case-insensitive).
func ParsePropagation(s string) (Propagation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "REQUIRED":
		return PropagationRequired, nil
	case "REQUIRES_NEW":
		return PropagationRequiresNew, nil
	case "MANDATORY":
		return PropagationMandatory, nil
	case "NESTED":
		return PropagationNested, nil
	default:
		return PropagationRequired, fmt.Errorf("unknown propagation %q", s)
	}
}

// IsolationLevel is passed through to the resource untouched.
type IsolationLevel string

const (
	IsolationDefault        IsolationLevel = ""
	IsolationReadCommitted  IsolationLevel = "read committed"
	IsolationRepeatableRead IsolationLevel = "repeatable read"
	IsolationSerializable   IsolationLevel = "serializable"
)

// Definition describes one demarcation request.
type Definition struct {
	// Name identifies the scope in logs, spans and journal entries.
	Name string

	Propagation Propagation

	// Isolation, ReadOnly and StatementTimeout only matter to the scope that
	// begins a physical transaction; joining scopes inherit the active one.
	Isolation        IsolationLevel
	ReadOnly         bool
	StatementTimeout time.Duration

	// RollbackFor forces ROLLBACK for these failure kinds.
	RollbackFor []Kind

	// NoRollbackFor forces COMMIT for these failure kinds.
	NoRollbackFor []Kind
}

// DefaultDefinition returns a REQUIRED read-write definition.
func DefaultDefinition() Definition {
	return Definition{Propagation: PropagationRequired}
}

// Named returns a REQUIRED definition with the given name.
func Named(name string) Definition {
	def := DefaultDefinition()
	def.Name = name
	return def
}

// RequiresNew returns a REQUIRES_NEW definition with the given name.
func RequiresNew(name string) Definition {
	return Definition{Name: name, Propagation: PropagationRequiresNew}
}

// Outcome is the commit-or-rollback decision for a scope.
type Outcome uint8

const (
	OutcomeCommit Outcome = iota
	OutcomeRollback
)

func (o Outcome) String() string {
	if o == OutcomeRollback {
		return "rollback"
	}
	return "commit"
}
