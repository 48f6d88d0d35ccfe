// Package record models the tuples flowing through a pipeline: ordered
// sequences of named fields whose values are cty.Values, plus the sink and
// group types an executor hands to user functions.
package record

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Record is one row of data: a fixed-order sequence of named fields.
type Record struct {
	fields []string
	values []cty.Value
}

// New builds a record from parallel field-name and value slices.
func New(fields []string, values []cty.Value) (*Record, error) {
	if len(fields) != len(values) {
		return nil, fmt.Errorf("record: %d field names for %d values", len(fields), len(values))
	}
	return &Record{fields: fields, values: values}, nil
}

// FromGo builds a record from native Go values, inferring each cty type the
// way the engine converts handler outputs.
func FromGo(fields []string, values []any) (*Record, error) {
	ctyVals := make([]cty.Value, len(values))
	for i, v := range values {
		cv, err := ToCty(v)
		if err != nil {
			return nil, fmt.Errorf("record: field %q: %w", fields[i], err)
		}
		ctyVals[i] = cv
	}
	return New(fields, ctyVals)
}

// Fields returns a copy of the field names in order; mutating it does not
// touch the record.
func (r *Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Values returns a copy of the field values in order; mutating it does not
// touch the record.
func (r *Record) Values() []cty.Value {
	return r.AsList()
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.values) }

// Get returns the value of the named field.
func (r *Record) Get(name string) (cty.Value, bool) {
	for i, f := range r.fields {
		if f == name {
			return r.values[i], true
		}
	}
	return cty.NilVal, false
}

// AsList returns the field values as an ordered list, the form handed to
// functions tagged as expecting list input.
func (r *Record) AsList() []cty.Value {
	out := make([]cty.Value, len(r.values))
	copy(out, r.values)
	return out
}

// AsMapping returns the fields as a name-keyed mapping, the form handed to
// functions tagged as expecting mapping input.
func (r *Record) AsMapping() map[string]cty.Value {
	out := make(map[string]cty.Value, len(r.values))
	for i, f := range r.fields {
		out[f] = r.values[i]
	}
	return out
}

// Prepend returns a new record with one extra leading field. Reduce output
// records get the group key prepended this way.
func (r *Record) Prepend(field string, value cty.Value) *Record {
	fields := make([]string, 0, len(r.fields)+1)
	fields = append(fields, field)
	fields = append(fields, r.fields...)
	values := make([]cty.Value, 0, len(r.values)+1)
	values = append(values, value)
	values = append(values, r.values...)
	return &Record{fields: fields, values: values}
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, f := range r.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", f, r.values[i])
	}
	b.WriteByte(')')
	return b.String()
}

// ToCty converts a native Go value into its corresponding cty.Value.
func ToCty(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	if cv, ok := v.(cty.Value); ok {
		return cv, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}
