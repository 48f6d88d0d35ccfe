// Package contract attaches execution metadata to user functions so a
// pipeline engine can invoke them correctly.
//
// A plain Go function carries no information about how a tuple-processing
// engine should call it: whether it transforms records one at a time, keeps
// or drops them, or aggregates whole groups; whether it wants the input as a
// record, a list, or a mapping; whether it returns its output, yields a lazy
// sequence, or pushes records into a sink. Tags capture exactly that, and
// nothing else — applying tags never calls, inspects, or validates the
// function. All consistency checking is deferred to the executor, which
// validates a descriptor immediately before first use.
//
// The first tag applied to a plain function wraps it in a Descriptor with
// documented defaults; further tags mutate the same descriptor in place.
// Later tags overwrite earlier ones for the same attribute, so tags touching
// disjoint attributes commute:
//
//	wordsPerLine := contract.Apply(splitWords,
//		contract.Map("word"),
//		contract.ExpectsArity(1),
//		contract.IsLazyProducer(),
//	)
package contract
