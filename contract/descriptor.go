package contract

import (
	"fmt"
	"reflect"
	"runtime"
)

// Role tells the executor how to invoke a function: once per record with the
// record as input (map), once per record as a keep/drop predicate (filter),
// or once per group with the group key and an iterator over its records
// (reduce).
type Role int

const (
	RoleUnset Role = iota
	RoleMap
	RoleFilter
	RoleReduce
)

func (r Role) String() string {
	switch r {
	case RoleMap:
		return "map"
	case RoleFilter:
		return "filter"
	case RoleReduce:
		return "reduce"
	default:
		return "unset"
	}
}

// InputShape selects how the executor presents each input record to the
// function: as the native record value, as an ordered list of field values,
// or as a field-name-keyed mapping.
type InputShape int

const (
	ShapeNative InputShape = iota
	ShapeList
	ShapeMapping
)

func (s InputShape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeMapping:
		return "mapping"
	default:
		return "native"
	}
}

// OutputMode selects how the executor collects a function's output records.
type OutputMode int

const (
	// ModeAuto collects the single return value, or drains it when the
	// function happens to return a lazy sequence.
	ModeAuto OutputMode = iota
	// ModeCollector supplies a sink argument at call time and reads the
	// records the function pushed into it.
	ModeCollector
	// ModeLazySeq treats the return value as a finite, one-shot sequence of
	// records; the function produces a fresh sequence per invocation.
	ModeLazySeq
)

func (m OutputMode) String() string {
	switch m {
	case ModeCollector:
		return "collector"
	case ModeLazySeq:
		return "lazy_sequence"
	default:
		return "auto"
	}
}

// OutputShape selects how the executor interprets each emitted value.
type OutputShape int

const (
	EmitAuto OutputShape = iota
	// EmitList means emitted values are ordered sequences of field values to
	// be converted into native records.
	EmitList
	// EmitNative means emitted values already are native records and pass
	// through unchanged.
	EmitNative
)

func (s OutputShape) String() string {
	switch s {
	case EmitList:
		return "list"
	case EmitNative:
		return "native"
	default:
		return "auto"
	}
}

// Descriptor is one user function plus its accumulated execution contract.
// It is a pure attribute record: each attribute holds at most one value, a
// later tag overwrites an earlier one for the same attribute, and nothing is
// validated until an executor consumes the descriptor.
type Descriptor struct {
	fn   any
	name string

	role            Role
	outputFields    []string
	expectedArity   int
	aritySet        bool
	inputShape      InputShape
	outputMode      OutputMode
	outputShape     OutputShape
	receivesContext bool
}

// Tag is one attribute update applied to a descriptor.
type Tag func(*Descriptor)

// Apply layers tags onto a function. When v is a plain function a new
// descriptor is created with all attributes at their defaults; when v is
// already a *Descriptor the same descriptor is updated in place and
// returned. The wrapped function is never called or inspected here.
func Apply(v any, tags ...Tag) *Descriptor {
	var d *Descriptor
	switch t := v.(type) {
	case *Descriptor:
		d = t
	case nil:
		panic("contract: Apply called with nil function")
	default:
		d = &Descriptor{fn: v}
	}
	return d.Apply(tags...)
}

// Apply layers further tags onto d and returns d for chaining.
func (d *Descriptor) Apply(tags ...Tag) *Descriptor {
	for _, tag := range tags {
		tag(d)
	}
	return d
}

// Func returns the wrapped function. The reference is fixed at creation.
func (d *Descriptor) Func() any { return d.fn }

// Role reports the invocation role, RoleUnset until a role tag is applied.
func (d *Descriptor) Role() Role { return d.role }

// OutputFields returns the declared output field names, nil when undeclared.
// Meaningful for map and reduce roles; executors ignore it for filters.
func (d *Descriptor) OutputFields() []string { return d.outputFields }

// ExpectedArity reports the required input field count. ok is false when no
// arity was declared.
func (d *Descriptor) ExpectedArity() (n int, ok bool) {
	return d.expectedArity, d.aritySet
}

// InputShape reports how input records should be presented.
func (d *Descriptor) InputShape() InputShape { return d.inputShape }

// OutputMode reports how output records are collected.
func (d *Descriptor) OutputMode() OutputMode { return d.outputMode }

// OutputShape reports how emitted values are interpreted.
func (d *Descriptor) OutputShape() OutputShape { return d.outputShape }

// ReceivesContext reports whether the executor must append its per-task
// context object to the call arguments.
func (d *Descriptor) ReceivesContext() bool { return d.receivesContext }

// Name returns the display name used in executor errors and logs: the name
// set by Named, else the runtime name of the wrapped function. Resolution
// happens here, at consumption time, never at tagging time.
func (d *Descriptor) Name() string {
	if d.name != "" {
		return d.name
	}
	fv := reflect.ValueOf(d.fn)
	if fv.Kind() == reflect.Func {
		if rf := runtime.FuncForPC(fv.Pointer()); rf != nil {
			return rf.Name()
		}
	}
	return fmt.Sprintf("%T", d.fn)
}
