package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowtag/contract"
	"github.com/vk/flowtag/record"
	"github.com/zclconf/go-cty/cty"
)

func TestValidateRequiresRoleBeforeAnyInvocation(t *testing.T) {
	calls := 0
	d := contract.Apply(func(r *record.Record) *record.Record {
		calls++
		return r
	}, contract.Named("untagged"))

	e := New()
	err := e.Validate(d)
	require.Error(t, err)

	var incomplete *ContractIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "untagged", incomplete.Descriptor)
	assert.Equal(t, "role", incomplete.Missing)

	// The operations refuse to run the function as well.
	rec, _ := record.FromGo([]string{"a"}, []any{1})
	_, err = e.Transform(context.Background(), d, rec)
	require.ErrorAs(t, err, &incomplete)
	assert.Zero(t, calls)
}

func TestValidateRejectsNonFunction(t *testing.T) {
	d := contract.Apply("not a function", contract.Map("a"), contract.Named("bogus"))

	err := New().Validate(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a function")
}

func TestValidateRejectsNegativeArity(t *testing.T) {
	d := contract.Apply(func(r *record.Record) *record.Record { return r },
		contract.Map("a"),
		contract.ExpectsArity(-1),
	)

	err := New().Validate(d)
	var conflict *ConflictingAttributeError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "expected_arity", conflict.Attribute)
}

func TestValidateRejectsFilterWithSink(t *testing.T) {
	d := contract.Apply(func(r *record.Record, s record.Sink) bool { return true },
		contract.Filter(),
		contract.UsesOutputSink(),
	)

	err := New().Validate(d)
	var conflict *ConflictingAttributeError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "output_mode", conflict.Attribute)
}

func TestValidateRejectsVariadicFunction(t *testing.T) {
	calls := 0
	d := contract.Apply(func(vals ...cty.Value) cty.Value {
		calls++
		return vals[0]
	}, contract.Map("first"), contract.ExpectsListInput())

	e := New()
	var shape *UnsupportedShapeError
	require.ErrorAs(t, e.Validate(d), &shape)
	assert.Contains(t, shape.Detail, "variadic")

	// Transform surfaces the same error instead of panicking inside the
	// reflect call.
	rec, _ := record.FromGo([]string{"a", "b"}, []any{1, 2})
	_, err := e.Transform(context.Background(), d, rec)
	require.ErrorAs(t, err, &shape)
	assert.Zero(t, calls)
}

func TestValidateChecksArgumentCount(t *testing.T) {
	// The contract supplies one argument (the record), but the function
	// wants two.
	d := contract.Apply(func(r *record.Record, extra int) *record.Record { return r },
		contract.Map("a"),
	)

	err := New().Validate(d)
	var shape *UnsupportedShapeError
	require.ErrorAs(t, err, &shape)

	// Tagging the context in makes the same signature valid arity-wise.
	d2 := contract.Apply(func(r *record.Record, tc *TaskContext) *record.Record { return r },
		contract.Map("a"),
		contract.WantsContext(),
	)
	require.NoError(t, New().Validate(d2))
}

func TestValidateChecksReturnSignature(t *testing.T) {
	tooMany := contract.Apply(func(r *record.Record) (int, int, error) { return 0, 0, nil },
		contract.Map("a"),
	)
	var shape *UnsupportedShapeError
	require.ErrorAs(t, New().Validate(tooMany), &shape)

	secondNotError := contract.Apply(func(r *record.Record) (int, int) { return 0, 0 },
		contract.Map("a"),
	)
	require.ErrorAs(t, New().Validate(secondNotError), &shape)

	valueAndError := contract.Apply(func(r *record.Record) (*record.Record, error) { return r, nil },
		contract.Map("a"),
	)
	require.NoError(t, New().Validate(valueAndError))
}

func TestOperationsRejectWrongRole(t *testing.T) {
	e := New()
	rec, _ := record.FromGo([]string{"a"}, []any{1})

	mapper := contract.Apply(func(r *record.Record) *record.Record { return r }, contract.Map("a"))
	_, err := e.Keep(context.Background(), mapper, rec)
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*ContractIncompleteError)))

	filter := contract.Apply(func(r *record.Record) bool { return true }, contract.Filter())
	_, err = e.Transform(context.Background(), filter, rec)
	require.Error(t, err)
}
