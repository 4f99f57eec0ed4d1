package dao

// Parameter is a List filter matched against entity attributes (for runs: State, Workflow)
type Parameter struct {
	Name string
	// Value is a string, or a []string matching any of its elements
	Value interface{}
}

// NewParameter creates a filter; several values match any of them
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
