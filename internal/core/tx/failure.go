package tx

import (
	"errors"
	"fmt"
)

// Category is the default classification tag of a failure kind.
type Category uint8

const (
	// CategoryFault is an unrecoverable failure; rolled back by default.
	CategoryFault Category = iota
	// CategoryExpected is a recoverable business outcome; committed by default.
	CategoryExpected
)

func (c Category) String() string {
	if c == CategoryExpected {
		return "expected"
	}
	return "fault"
}

// Kind identifies a class of failure. Kinds are comparable and can be used as
// map keys and in Definition.RollbackFor / NoRollbackFor.
type Kind struct {
	name     string
	category Category
}

// FaultKind declares an unrecoverable failure kind.
func FaultKind(name string) Kind {
	return Kind{name: name, category: CategoryFault}
}

// ExpectedKind declares a recoverable failure kind.
func ExpectedKind(name string) Kind {
	return Kind{name: name, category: CategoryExpected}
}

// KindUnclassified is assigned to errors that carry no kind.
var KindUnclassified = FaultKind("unclassified")

func (k Kind) Name() string       { return k.name }
func (k Kind) Category() Category { return k.category }
func (k Kind) String() string     { return k.category.String() + ":" + k.name }
func (k Kind) IsExpected() bool   { return k.category == CategoryExpected }

// Failure is an error tagged with a Kind.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

// NewFailure creates a tagged failure.
func NewFailure(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// WrapFailure tags err with kind. A nil err yields a bare failure of that kind.
func WrapFailure(kind Kind, err error) *Failure {
	if err == nil {
		return &Failure{Kind: kind}
	}
	return &Failure{Kind: kind, Message: err.Error(), Err: err}
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %s", f.Kind.name, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// FailureKind implements the kind carrier interface.
func (f *Failure) FailureKind() Kind { return f.Kind }

// Is matches failures of the same kind, so sentinel failures work with errors.Is.
func (f *Failure) Is(target error) bool {
	var other *Failure
	if errors.As(target, &other) {
		return other.Kind == f.Kind
	}
	return false
}

type kindCarrier interface {
	FailureKind() Kind
}

// KindOf returns the kind of the first tagged error in err's chain,
// or KindUnclassified for an untagged non-nil error.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return Kind{}, false
	}
	var carrier kindCarrier
	if errors.As(err, &carrier) {
		return carrier.FailureKind(), true
	}
	return KindUnclassified, true
}
