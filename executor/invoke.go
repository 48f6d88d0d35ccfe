package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/flowtag/contract"
	"github.com/vk/flowtag/internal/ctxlog"
	"github.com/vk/flowtag/record"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	ctyValueType      = reflect.TypeOf(cty.Value{})
	ctyValueSliceType = reflect.TypeOf([]cty.Value(nil))
	ctyValueMapType   = reflect.TypeOf(map[string]cty.Value(nil))
)

// argBuilder produces one call argument once the parameter type it must fill
// is known.
type argBuilder func(d *contract.Descriptor, param reflect.Type) (reflect.Value, error)

type stageKey struct{}

// WithStage returns a context carrying the stage name an executor should
// report in the TaskContext of functions tagged as wanting context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

func stageFrom(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok {
		return s
	}
	return ""
}

// invoke assembles the call argument list, calls the wrapped function, and
// returns the raw emitted values per the descriptor's output mode. Validate
// has already checked the argument count against the signature.
func (e *Executor) invoke(ctx context.Context, d *contract.Descriptor, builders []argBuilder) ([]any, error) {
	fnVal := reflect.ValueOf(d.Func())
	fnType := fnVal.Type()

	var sink *record.Buffer
	if d.OutputMode() == contract.ModeCollector {
		sink = &record.Buffer{}
		builders = append(builders, suppliedArg(sink, "collector mode supplies a record.Sink"))
	}
	if d.ReceivesContext() {
		tc := &TaskContext{Context: ctx, Stage: stageFrom(ctx), Logger: ctxlog.FromContext(ctx)}
		builders = append(builders, suppliedArg(tc, "context is supplied as *executor.TaskContext"))
	}

	callArgs := make([]reflect.Value, len(builders))
	for i, build := range builders {
		v, err := build(d, fnType.In(i))
		if err != nil {
			return nil, err
		}
		callArgs[i] = v
	}

	payload, hasPayload, err := splitResults(fnVal.Call(callArgs))
	if err != nil {
		return nil, fmt.Errorf("descriptor %s: %w", d.Name(), err)
	}

	switch d.OutputMode() {
	case contract.ModeCollector:
		return sink.Items(), nil
	case contract.ModeLazySeq:
		if !hasPayload {
			return nil, &UnsupportedShapeError{Descriptor: d.Name(), Detail: "lazy producer returned no sequence"}
		}
		items, ok := drainSeq(payload)
		if !ok {
			return nil, &UnsupportedShapeError{
				Descriptor: d.Name(),
				Detail:     fmt.Sprintf("return value of type %T is not a lazy sequence", payload),
			}
		}
		return items, nil
	default:
		if !hasPayload || payload == nil {
			return nil, nil
		}
		// Autodetect: a returned sequence is drained, anything else is a
		// single emitted value.
		if items, ok := drainSeq(payload); ok {
			return items, nil
		}
		return []any{payload}, nil
	}
}

// inputArgs builds the single input argument of a map or filter call,
// converted per the descriptor's input shape.
func (e *Executor) inputArgs(d *contract.Descriptor, rec *record.Record) []argBuilder {
	return []argBuilder{
		func(d *contract.Descriptor, param reflect.Type) (reflect.Value, error) {
			return shapeInput(d, rec, param)
		},
	}
}

// groupArgs builds the two leading arguments of a reduce call: the group key
// and the iterator over the group's records.
func (e *Executor) groupArgs(g *record.Group) []argBuilder {
	return []argBuilder{
		func(d *contract.Descriptor, param reflect.Type) (reflect.Value, error) {
			if param == ctyValueType {
				return reflect.ValueOf(g.Key()), nil
			}
			out := reflect.New(param)
			if err := gocty.FromCtyValue(g.Key(), out.Interface()); err != nil {
				return reflect.Value{}, &UnsupportedShapeError{
					Descriptor: d.Name(),
					Detail:     fmt.Sprintf("cannot pass group key as %s: %v", param, err),
				}
			}
			return out.Elem(), nil
		},
		func(d *contract.Descriptor, param reflect.Type) (reflect.Value, error) {
			seq := reflect.ValueOf(g.Records())
			if seq.Type().AssignableTo(param) {
				return seq, nil
			}
			if seq.Type().ConvertibleTo(param) {
				return seq.Convert(param), nil
			}
			return reflect.Value{}, &UnsupportedShapeError{
				Descriptor: d.Name(),
				Detail:     fmt.Sprintf("reduce function must take iter.Seq[*record.Record] for the group, not %s", param),
			}
		},
	}
}

// suppliedArg passes a fixed executor-owned value (sink, task context) into
// a parameter, failing when the parameter type cannot hold it.
func suppliedArg(v any, what string) argBuilder {
	return func(d *contract.Descriptor, param reflect.Type) (reflect.Value, error) {
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(param) {
			return reflect.Value{}, &UnsupportedShapeError{
				Descriptor: d.Name(),
				Detail:     fmt.Sprintf("%s, function takes %s", what, param),
			}
		}
		return rv, nil
	}
}

// shapeInput converts one input record into the declared shape and adapts it
// to the function's parameter type, using gocty when the parameter wants
// plain Go values.
func shapeInput(d *contract.Descriptor, rec *record.Record, param reflect.Type) (reflect.Value, error) {
	switch d.InputShape() {
	case contract.ShapeList:
		if param == ctyValueSliceType {
			return reflect.ValueOf(rec.AsList()), nil
		}
		if param.Kind() == reflect.Slice {
			out := reflect.MakeSlice(param, rec.Len(), rec.Len())
			for i, cv := range rec.Values() {
				elem := reflect.New(param.Elem())
				if err := gocty.FromCtyValue(cv, elem.Interface()); err != nil {
					return reflect.Value{}, &UnsupportedShapeError{
						Descriptor: d.Name(),
						Detail:     fmt.Sprintf("list input field %d does not fit %s: %v", i, param.Elem(), err),
					}
				}
				out.Index(i).Set(elem.Elem())
			}
			return out, nil
		}
		return reflect.Value{}, &UnsupportedShapeError{
			Descriptor: d.Name(),
			Detail:     fmt.Sprintf("list input requires a slice parameter, function takes %s", param),
		}

	case contract.ShapeMapping:
		if param == ctyValueMapType {
			return reflect.ValueOf(rec.AsMapping()), nil
		}
		if param.Kind() == reflect.Map && param.Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(param, rec.Len())
			for name, cv := range rec.AsMapping() {
				elem := reflect.New(param.Elem())
				if err := gocty.FromCtyValue(cv, elem.Interface()); err != nil {
					return reflect.Value{}, &UnsupportedShapeError{
						Descriptor: d.Name(),
						Detail:     fmt.Sprintf("mapping input field %q does not fit %s: %v", name, param.Elem(), err),
					}
				}
				out.SetMapIndex(reflect.ValueOf(name), elem.Elem())
			}
			return out, nil
		}
		return reflect.Value{}, &UnsupportedShapeError{
			Descriptor: d.Name(),
			Detail:     fmt.Sprintf("mapping input requires a string-keyed map parameter, function takes %s", param),
		}

	default:
		rv := reflect.ValueOf(rec)
		if !rv.Type().AssignableTo(param) {
			return reflect.Value{}, &UnsupportedShapeError{
				Descriptor: d.Name(),
				Detail:     fmt.Sprintf("native input is *record.Record, function takes %s", param),
			}
		}
		return rv, nil
	}
}

// splitResults unpacks a reflect call result into (payload, hasPayload,
// error). A trailing error return, when non-nil, aborts the operation.
func splitResults(results []reflect.Value) (any, bool, error) {
	if len(results) == 0 {
		return nil, false, nil
	}
	last := results[len(results)-1]
	if last.Type().Implements(errType) {
		if !last.IsNil() {
			return nil, false, last.Interface().(error)
		}
		results = results[:len(results)-1]
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0].Interface(), true, nil
}

// drainSeq recognizes an iter.Seq-shaped value, func(yield func(V) bool),
// and drains it to completion. Each drain consumes a fresh sequence; the
// producer is never reused.
func drainSeq(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return nil, false
	}
	rt := rv.Type()
	if rt.NumIn() != 1 || rt.NumOut() != 0 {
		return nil, false
	}
	yt := rt.In(0)
	if yt.Kind() != reflect.Func || yt.NumIn() != 1 || yt.NumOut() != 1 || yt.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	if rv.IsNil() {
		return nil, true
	}

	var items []any
	yield := reflect.MakeFunc(yt, func(args []reflect.Value) []reflect.Value {
		items = append(items, args[0].Interface())
		return []reflect.Value{reflect.ValueOf(true)}
	})
	rv.Call([]reflect.Value{yield})
	return items, true
}

// toRecords converts raw emitted values into records per the descriptor's
// output shape. Emitted nils produce no records.
func (e *Executor) toRecords(d *contract.Descriptor, emitted []any) ([]*record.Record, error) {
	var out []*record.Record
	for _, v := range emitted {
		if isNil(v) {
			continue
		}
		switch d.OutputShape() {
		case contract.EmitNative:
			r, ok := v.(*record.Record)
			if !ok {
				return nil, &UnsupportedShapeError{
					Descriptor: d.Name(),
					Detail:     fmt.Sprintf("native output must be *record.Record, got %T", v),
				}
			}
			out = append(out, r)

		case contract.EmitList:
			r, err := e.listToRecord(d, v)
			if err != nil {
				return nil, err
			}
			out = append(out, r)

		default:
			if r, ok := v.(*record.Record); ok {
				out = append(out, r)
				continue
			}
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
				r, err := e.listToRecord(d, v)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
				continue
			}
			r, err := e.singleToRecord(d, v)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// listToRecord turns one emitted sequence of field values into a record,
// named by the declared output fields or by synthesized f0..fN names.
func (e *Executor) listToRecord(d *contract.Descriptor, v any) (*record.Record, error) {
	var vals []cty.Value
	if l, ok := v.([]cty.Value); ok {
		vals = l
	} else {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return nil, &UnsupportedShapeError{
				Descriptor: d.Name(),
				Detail:     fmt.Sprintf("list output must be a slice, got %T", v),
			}
		}
		vals = make([]cty.Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			cv, err := record.ToCty(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("descriptor %s: emitted value %d: %w", d.Name(), i, err)
			}
			vals[i] = cv
		}
	}

	fields := d.OutputFields()
	if len(fields) == 0 {
		fields = make([]string, len(vals))
		for i := range fields {
			fields[i] = fmt.Sprintf("f%d", i)
		}
	} else if len(fields) != len(vals) {
		return nil, fmt.Errorf("descriptor %s: emitted %d values for %d declared output fields", d.Name(), len(vals), len(fields))
	}
	return record.New(fields, vals)
}

// singleToRecord wraps one emitted scalar into a one-field record.
func (e *Executor) singleToRecord(d *contract.Descriptor, v any) (*record.Record, error) {
	cv, err := record.ToCty(v)
	if err != nil {
		return nil, fmt.Errorf("descriptor %s: emitted value: %w", d.Name(), err)
	}
	field := "f0"
	if fields := d.OutputFields(); len(fields) == 1 {
		field = fields[0]
	}
	return record.New([]string{field}, []cty.Value{cv})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
