// Package pipeline wires contract descriptors into runnable stage chains.
//
// Descriptors are registered under names, pipeline definitions reference
// those names from declarative HCL blocks, and the runner executes the
// resulting chain over an in-memory record slice. The runner is a local,
// single-process convenience for development and testing; a production
// deployment hands the same descriptors to a distributed engine instead.
//
//	pipeline "wordcount" {
//	  fields = ["line"]
//
//	  stage "tokenize" {
//	    use = "split_words"
//	  }
//
//	  stage "count" {
//	    use      = "count_words"
//	    group_by = "word"
//	  }
//	}
package pipeline
