package tx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Defaults(t *testing.T) {
	assert.Equal(t, OutcomeCommit, Classify(nil, nil))
	assert.Equal(t, OutcomeRollback, Classify(errors.New("plain error"), nil))
	assert.Equal(t, OutcomeRollback, Classify(NewFailure(FaultKind("io"), "disk"), nil))
	assert.Equal(t, OutcomeCommit, Classify(NewFailure(ExpectedKind("no_money"), "low"), nil))
}

func TestClassify_OverrideSet(t *testing.T) {
	recoverable := ExpectedKind("my_exception")
	failure := NewFailure(recoverable, "checked")

	assert.Equal(t, OutcomeCommit, Classify(failure, nil))
	assert.Equal(t, OutcomeRollback, Classify(failure, []Kind{recoverable}))
	assert.Equal(t, OutcomeCommit, Classify(failure, []Kind{ExpectedKind("other")}))
}

func TestClassify_WrappedFailureKeepsKind(t *testing.T) {
	recoverable := ExpectedKind("my_exception")
	wrapped := fmt.Errorf("service call: %w", NewFailure(recoverable, "checked"))

	assert.Equal(t, OutcomeCommit, Classify(wrapped, nil))
	assert.Equal(t, OutcomeRollback, Classify(wrapped, []Kind{recoverable}))
}

func TestWrapFailure_NilCause(t *testing.T) {
	kind := FaultKind("io")
	var f *Failure
	require.NotPanics(t, func() { f = WrapFailure(kind, nil) })
	assert.Equal(t, kind.String(), f.Error())
	assert.NoError(t, f.Unwrap())
	got, ok := KindOf(f)
	require.True(t, ok)
	assert.Equal(t, kind, got)
}

func TestPolicy_NoRollbackFor(t *testing.T) {
	fault := FaultKind("cache_miss")
	def := Definition{NoRollbackFor: []Kind{fault}}

	assert.Equal(t, OutcomeCommit, DefaultPolicy().Classify(NewFailure(fault, "miss"), def))

	def.RollbackFor = []Kind{fault}
	assert.Equal(t, OutcomeRollback, DefaultPolicy().Classify(NewFailure(fault, "miss"), def), "RollbackFor wins")
}

func TestPolicy_Rules(t *testing.T) {
	rules, err := ParseRules(`kind.startsWith("payment_"); message.contains("deadlock")`)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	p := NewPolicy(rules...)

	assert.Equal(t, OutcomeRollback, p.Classify(NewFailure(ExpectedKind("payment_declined"), "declined"), Definition{}))
	assert.Equal(t, OutcomeCommit, p.Classify(NewFailure(ExpectedKind("not_enough_money"), "low"), Definition{}))
	assert.Equal(t, OutcomeRollback, p.Classify(NewFailure(ExpectedKind("retryable"), "deadlock detected"), Definition{}))

	def := Definition{NoRollbackFor: []Kind{ExpectedKind("payment_declined")}}
	assert.Equal(t, OutcomeCommit, p.Classify(NewFailure(ExpectedKind("payment_declined"), "declined"), def))
}

func TestCompileRule_Errors(t *testing.T) {
	_, err := CompileRule(`kind ==`)
	assert.Error(t, err)

	_, err = CompileRule(`kind`)
	assert.Error(t, err, "non-bool rule")

	rule, err := CompileRule(`category == "fault"`)
	require.NoError(t, err)
	assert.Equal(t, `category == "fault"`, rule.String())
	assert.True(t, rule.Matches(FaultKind("x"), errors.New("x")))
}

func TestParseRules_Empty(t *testing.T) {
	rules, err := ParseRules(" ; ")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestKindOf(t *testing.T) {
	_, failed := KindOf(nil)
	assert.False(t, failed)

	kind, failed := KindOf(errors.New("x"))
	assert.True(t, failed)
	assert.Equal(t, KindUnclassified, kind)

	base := errors.New("io timeout")
	wrapped := WrapFailure(FaultKind("io"), base)
	kind, _ = KindOf(wrapped)
	assert.Equal(t, "io", kind.Name())
	assert.ErrorIs(t, wrapped, base)
	assert.ErrorIs(t, wrapped, NewFailure(FaultKind("io"), ""))
}

func TestParsePropagation(t *testing.T) {
	p, err := ParsePropagation("requires_new")
	require.NoError(t, err)
	assert.Equal(t, PropagationRequiresNew, p)

	p, err = ParsePropagation("")
	require.NoError(t, err)
	assert.Equal(t, PropagationRequired, p)

	_, err = ParsePropagation("SUPPORTS")
	assert.Error(t, err)

	text, err := PropagationNested.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "NESTED", string(text))
}
