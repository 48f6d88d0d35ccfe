package executor

import (
	"fmt"
	"reflect"

	"github.com/vk/flowtag/contract"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Validate performs a strict consistency check of a descriptor's contract
// against the wrapped function's signature. It must pass before any
// invocation is attempted; a misconfigured contract fails here, before any
// record is processed.
func (e *Executor) Validate(d *contract.Descriptor) error {
	name := d.Name()

	if d.Role() == contract.RoleUnset {
		return &ContractIncompleteError{Descriptor: name, Missing: "role"}
	}

	fnVal := reflect.ValueOf(d.Func())
	if fnVal.Kind() != reflect.Func || fnVal.IsNil() {
		return fmt.Errorf("descriptor %s: wrapped value of type %T is not a function", name, d.Func())
	}
	fnType := fnVal.Type()
	if fnType.IsVariadic() {
		return &UnsupportedShapeError{
			Descriptor: name,
			Detail:     "variadic functions are not supported; declare a slice parameter instead",
		}
	}

	if n, ok := d.ExpectedArity(); ok && n < 0 {
		return &ConflictingAttributeError{
			Descriptor: name,
			Attribute:  "expected_arity",
			Detail:     fmt.Sprintf("must be non-negative, got %d", n),
		}
	}

	// A filter answers keep/drop through its return value; it cannot also
	// route output through a sink or a lazy sequence.
	if d.Role() == contract.RoleFilter && d.OutputMode() != contract.ModeAuto {
		return &ConflictingAttributeError{
			Descriptor: name,
			Attribute:  "output_mode",
			Detail:     fmt.Sprintf("filter role cannot use output mode %q", d.OutputMode()),
		}
	}

	if want, got := e.argCount(d), fnType.NumIn(); want != got {
		return &UnsupportedShapeError{
			Descriptor: name,
			Detail:     fmt.Sprintf("contract supplies %d call arguments but function takes %d", want, got),
		}
	}

	switch fnType.NumOut() {
	case 0, 1:
	case 2:
		if !fnType.Out(1).Implements(errType) {
			return &UnsupportedShapeError{
				Descriptor: name,
				Detail:     "second return value must be an error",
			}
		}
	default:
		return &UnsupportedShapeError{
			Descriptor: name,
			Detail:     fmt.Sprintf("function returns %d values, at most (value, error) is supported", fnType.NumOut()),
		}
	}

	return nil
}

// argCount computes how many call arguments this executor supplies: the
// input (key plus record iterator for reduce), then a sink in collector
// mode, then the task context when requested. This fixed order is the
// documented calling convention.
func (e *Executor) argCount(d *contract.Descriptor) int {
	n := 1
	if d.Role() == contract.RoleReduce {
		n = 2
	}
	if d.OutputMode() == contract.ModeCollector {
		n++
	}
	if d.ReceivesContext() {
		n++
	}
	return n
}
