package executor

import "fmt"

// ContractIncompleteError reports a descriptor whose contract is missing a
// required attribute, discovered when an executor first tries to use it.
type ContractIncompleteError struct {
	Descriptor string
	Missing    string
}

func (e *ContractIncompleteError) Error() string {
	return fmt.Sprintf("descriptor %s: contract incomplete: %s is not set", e.Descriptor, e.Missing)
}

// ArityMismatchError reports an input record whose field count disagrees
// with the descriptor's declared arity.
type ArityMismatchError struct {
	Descriptor string
	Want       int
	Got        int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("descriptor %s: arity mismatch: expected %d input fields, got %d", e.Descriptor, e.Want, e.Got)
}

// UnsupportedShapeError reports an input/output shape combination this
// executor cannot satisfy for the wrapped function's signature.
type UnsupportedShapeError struct {
	Descriptor string
	Detail     string
}

func (e *UnsupportedShapeError) Error() string {
	return fmt.Sprintf("descriptor %s: unsupported shape: %s", e.Descriptor, e.Detail)
}

// ConflictingAttributeError reports mutually exclusive attributes detected
// as active at consumption time.
type ConflictingAttributeError struct {
	Descriptor string
	Attribute  string
	Detail     string
}

func (e *ConflictingAttributeError) Error() string {
	return fmt.Sprintf("descriptor %s: conflicting attribute %s: %s", e.Descriptor, e.Attribute, e.Detail)
}
