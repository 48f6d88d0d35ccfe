package pipeline

// Definition is the format-agnostic representation of a `pipeline` block.
type Definition struct {
	Name   string
	Fields []string
	Stages []*Stage
}

// Stage is the format-agnostic representation of a `stage` block. Use names
// a registered descriptor; GroupBy names the field reduce stages group on.
type Stage struct {
	Name    string
	Use     string
	GroupBy string
}
