package contract

// Map marks the function as a per-record transform. It is called once per
// input record and may emit zero, one, or several output records. fields
// optionally declares the names of the output fields.
func Map(fields ...string) Tag {
	return func(d *Descriptor) {
		d.role = RoleMap
		d.outputFields = fields
	}
}

// Filter marks the function as a per-record predicate: it returns true to
// keep the input record and false to drop it. Declared output fields, if any
// were set by an earlier tag, are ignored by executors for this role.
func Filter() Tag {
	return func(d *Descriptor) {
		d.role = RoleFilter
	}
}

// Reduce marks the function as a per-group aggregator. The executor calls it
// with the group key and an iterator over the group's records, and prepends
// the key field to every record it emits. fields optionally declares the
// names of the emitted fields (before key prepending).
func Reduce(fields ...string) Tag {
	return func(d *Descriptor) {
		d.role = RoleReduce
		d.outputFields = fields
	}
}

// ExpectsArity declares the exact number of fields every input record must
// have. The executor rejects records with a different field count before
// calling the function. n is stored as given; a negative value is reported
// at validation time, not here.
func ExpectsArity(n int) Tag {
	return func(d *Descriptor) {
		d.expectedArity = n
		d.aritySet = true
	}
}

// ExpectsListInput asks the executor to convert each input record into an
// ordered list of field values before the call. Overwrites any earlier
// input-shape tag.
func ExpectsListInput() Tag {
	return func(d *Descriptor) {
		d.inputShape = ShapeList
	}
}

// ExpectsMappingInput asks the executor to convert each input record into a
// field-name-keyed mapping before the call. Overwrites any earlier
// input-shape tag.
func ExpectsMappingInput() Tag {
	return func(d *Descriptor) {
		d.inputShape = ShapeMapping
	}
}

// UsesOutputSink declares that the function writes its output records into a
// sink the executor supplies as an extra call argument, instead of returning
// them.
func UsesOutputSink() Tag {
	return func(d *Descriptor) {
		d.outputMode = ModeCollector
	}
}

// IsLazyProducer declares that the function returns a lazy, finite, one-shot
// sequence of output records which the executor drains until exhaustion. A
// fresh sequence is produced per invocation.
func IsLazyProducer() Tag {
	return func(d *Descriptor) {
		d.outputMode = ModeLazySeq
	}
}

// EmitsListRecords declares that emitted values are ordered sequences of
// field values; the executor converts each one into a native record.
func EmitsListRecords() Tag {
	return func(d *Descriptor) {
		d.outputShape = EmitList
	}
}

// EmitsNativeRecords declares that emitted values already are native records
// and pass through unchanged.
func EmitsNativeRecords() Tag {
	return func(d *Descriptor) {
		d.outputShape = EmitNative
	}
}

// WantsContext asks the executor to append its opaque per-task context
// object as the final call argument.
func WantsContext() Tag {
	return func(d *Descriptor) {
		d.receivesContext = true
	}
}

// Named sets the display name used when an executor reports errors about
// this descriptor. Without it the runtime name of the wrapped function is
// used.
func Named(name string) Tag {
	return func(d *Descriptor) {
		d.name = name
	}
}
