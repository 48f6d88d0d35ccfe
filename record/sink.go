package record

// Sink receives output records from a function tagged as using an output
// sink. The values collected are interpreted per the descriptor's output
// shape, so a function may push *Record values, []cty.Value slices, or plain
// Go slices.
type Sink interface {
	Collect(v any)
}

// Buffer is the slice-backed Sink an in-process executor supplies and drains
// after the call returns. Not safe for concurrent use; each invocation gets
// its own buffer.
type Buffer struct {
	items []any
}

// Collect appends one emitted value.
func (b *Buffer) Collect(v any) {
	b.items = append(b.items, v)
}

// Items returns the collected values in emission order.
func (b *Buffer) Items() []any { return b.items }
