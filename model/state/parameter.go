package state

import (
	"fmt"
	"strings"

	"github.com/viant/toolbox"
)

// Parameter kinds.
const (
	KindString    = "string"
	KindNumber    = "number"
	KindPath      = "path"
	KindReference = "reference"
)

// Parameter represents a named stage or workflow value
type Parameter struct {
	Name       string       `json:"name" yaml:"name"`
	Kind       string       `json:"kind,omitempty" yaml:"kind,omitempty"`
	Value      interface{}  `json:"value" yaml:"value"`
	References []*Reference `json:"references,omitempty" yaml:"references,omitempty"`
}

// Parameters is an ordered collection of named values
type Parameters []*Parameter

// IsReference returns true when the value depends on another stage output or an init parameter.
func (p *Parameter) IsReference() bool {
	return len(p.References) > 0
}

// Resolve substitutes references using lookup. A value consisting of exactly one
// reference takes the referenced value with its type; embedded references are
// interpolated as text.
func (p *Parameter) Resolve(lookup func(ref *Reference) (interface{}, bool)) (interface{}, error) {
	if !p.IsReference() {
		return p.coerce(p.Value)
	}
	text, _ := p.Value.(string)
	if len(p.References) == 1 && strings.TrimSpace(text) == p.References[0].Expr {
		ref := p.References[0]
		value, ok := lookup(ref)
		if !ok {
			return nil, fmt.Errorf("parameter %s: unresolved reference %s", p.Name, ref.Expr)
		}
		return value, nil
	}
	for _, ref := range p.References {
		value, ok := lookup(ref)
		if !ok {
			return nil, fmt.Errorf("parameter %s: unresolved reference %s", p.Name, ref.Expr)
		}
		text = strings.ReplaceAll(text, ref.Expr, toolbox.AsString(value))
	}
	return p.coerce(text)
}

func (p *Parameter) coerce(value interface{}) (interface{}, error) {
	switch p.Kind {
	case KindNumber:
		switch value.(type) {
		case int, int64, float64, float32:
			return value, nil
		}
		var number float64
		if err := toolbox.DefaultConverter.AssignConverted(&number, value); err != nil {
			return nil, fmt.Errorf("parameter %s: expected number, got %v", p.Name, value)
		}
		return number, nil
	case KindPath, KindString:
		if value == nil {
			return "", nil
		}
		if _, ok := value.(string); !ok {
			return toolbox.AsString(value), nil
		}
	}
	return value, nil
}

// Add appends a parameter to the collection
func (p *Parameters) Add(name string, value interface{}) {
	*p = append(*p, &Parameter{
		Name:  name,
		Kind:  KindOf(value),
		Value: value,
	})
}

// Get retrieves a parameter by name
func (p Parameters) Get(name string) (*Parameter, bool) {
	for _, param := range p {
		if param.Name == name {
			return param, true
		}
	}
	return nil, false
}

// Names returns parameter names in declaration order
func (p Parameters) Names() []string {
	result := make([]string, 0, len(p))
	for _, param := range p {
		result = append(result, param.Name)
	}
	return result
}

// ToMap converts Parameters to a map
func (p Parameters) ToMap() map[string]interface{} {
	result := make(map[string]interface{})
	for _, param := range p {
		result[param.Name] = param.Value
	}
	return result
}

// KindOf infers a parameter kind from a literal value.
func KindOf(value interface{}) string {
	switch value.(type) {
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return KindNumber
	}
	return KindString
}
