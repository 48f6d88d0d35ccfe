// Package executor is an in-process consumer of function contracts: it
// validates a descriptor, converts input records to the declared shape,
// assembles the call argument list, invokes the wrapped function through
// reflection, and collects the emitted records per the declared output mode
// and shape.
//
// The calling convention is fixed: the input comes first (for reduce, the
// group key then the record iterator), then the output sink in collector
// mode, then the *TaskContext when the descriptor asks for it.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/flowtag/contract"
	"github.com/vk/flowtag/internal/ctxlog"
	"github.com/vk/flowtag/record"
)

// TaskContext is the opaque per-task object handed to functions tagged as
// wanting context.
type TaskContext struct {
	Context context.Context
	Stage   string
	Logger  *slog.Logger
}

// Executor invokes contract-tagged functions over records and groups.
type Executor struct{}

// New creates an Executor.
func New() *Executor {
	return &Executor{}
}

// Transform runs a map-role function over one input record and returns the
// records it emitted, converted per the descriptor's output shape.
func (e *Executor) Transform(ctx context.Context, d *contract.Descriptor, rec *record.Record) ([]*record.Record, error) {
	if err := e.Validate(d); err != nil {
		return nil, err
	}
	if d.Role() != contract.RoleMap {
		return nil, fmt.Errorf("descriptor %s: role is %s, Transform requires map", d.Name(), d.Role())
	}
	if err := e.checkArity(d, rec); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("Calling map function.", "descriptor", d.Name())
	emitted, err := e.invoke(ctx, d, e.inputArgs(d, rec))
	if err != nil {
		return nil, err
	}
	return e.toRecords(d, emitted)
}

// Keep runs a filter-role function over one input record and reports whether
// the record stays in the stream.
func (e *Executor) Keep(ctx context.Context, d *contract.Descriptor, rec *record.Record) (bool, error) {
	if err := e.Validate(d); err != nil {
		return false, err
	}
	if d.Role() != contract.RoleFilter {
		return false, fmt.Errorf("descriptor %s: role is %s, Keep requires filter", d.Name(), d.Role())
	}
	if err := e.checkArity(d, rec); err != nil {
		return false, err
	}

	ctxlog.FromContext(ctx).Debug("Calling filter function.", "descriptor", d.Name())
	emitted, err := e.invoke(ctx, d, e.inputArgs(d, rec))
	if err != nil {
		return false, err
	}
	if len(emitted) != 1 {
		return false, &UnsupportedShapeError{Descriptor: d.Name(), Detail: "filter must return exactly one value"}
	}
	keep, ok := emitted[0].(bool)
	if !ok {
		return false, &UnsupportedShapeError{Descriptor: d.Name(), Detail: fmt.Sprintf("filter must return bool, got %T", emitted[0])}
	}
	return keep, nil
}

// Aggregate runs a reduce-role function over one group. The function
// receives the group key and an iterator over the group's records; the group
// key field is prepended to every record it emits.
func (e *Executor) Aggregate(ctx context.Context, d *contract.Descriptor, g *record.Group) ([]*record.Record, error) {
	if err := e.Validate(d); err != nil {
		return nil, err
	}
	if d.Role() != contract.RoleReduce {
		return nil, fmt.Errorf("descriptor %s: role is %s, Aggregate requires reduce", d.Name(), d.Role())
	}
	if _, ok := d.ExpectedArity(); ok {
		var arityErr error
		for r := range g.Records() {
			if err := e.checkArity(d, r); err != nil {
				arityErr = err
				break
			}
		}
		if arityErr != nil {
			return nil, arityErr
		}
	}

	ctxlog.FromContext(ctx).Debug("Calling reduce function.", "descriptor", d.Name(), "group_size", g.Len())
	emitted, err := e.invoke(ctx, d, e.groupArgs(g))
	if err != nil {
		return nil, err
	}
	recs, err := e.toRecords(d, emitted)
	if err != nil {
		return nil, err
	}
	out := make([]*record.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Prepend(g.KeyField(), g.Key())
	}
	return out, nil
}

// checkArity rejects records whose field count disagrees with the declared
// arity. Descriptors without a declared arity accept any width.
func (e *Executor) checkArity(d *contract.Descriptor, rec *record.Record) error {
	want, ok := d.ExpectedArity()
	if !ok {
		return nil
	}
	if rec.Len() != want {
		return &ArityMismatchError{Descriptor: d.Name(), Want: want, Got: rec.Len()}
	}
	return nil
}
