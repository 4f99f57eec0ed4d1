package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/viant/structology/conv"
	"github.com/viant/x"
)

// Typed is implemented by adapters with a typed parameter struct
type Typed interface {
	// Params returns a pointer to a zero parameter struct
	Params() interface{}
}

// Registry selects adapters by engine kind
type Registry struct {
	adapters map[string]Adapter
	types    *x.Registry
	params   map[string]*x.Type
	mux      sync.RWMutex
}

// Register adds or replaces an adapter
func (r *Registry) Register(adapter Adapter) {
	r.mux.Lock()
	defer r.mux.Unlock()
	kind := strings.ToLower(adapter.Kind())
	r.adapters[kind] = adapter
	if typed, ok := adapter.(Typed); ok {
		aType := x.NewType(reflect.TypeOf(typed.Params()).Elem())
		r.types.Register(aType)
		r.params[kind] = aType
	}
}

// Lookup returns the adapter for kind
func (r *Registry) Lookup(kind string) (Adapter, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	adapter, ok := r.adapters[strings.ToLower(kind)]
	if !ok {
		return nil, fmt.Errorf("unsupported engine %q", kind)
	}
	return adapter, nil
}

// Kinds returns registered engine kinds, sorted
func (r *Registry) Kinds() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	ret := make([]string, 0, len(r.adapters))
	for kind := range r.adapters {
		ret = append(ret, kind)
	}
	sort.Strings(ret)
	return ret
}

// ParamNames returns accepted parameter names of a typed adapter, or nil for untyped ones
func (r *Registry) ParamNames(kind string) []string {
	r.mux.RLock()
	aType, ok := r.params[strings.ToLower(kind)]
	r.mux.RUnlock()
	if !ok {
		return nil
	}
	var ret []string
	for i := 0; i < aType.Type.NumField(); i++ {
		ret = append(ret, fieldName(aType.Type.Field(i)))
	}
	return ret
}

// CheckParams fails on parameter names a typed adapter does not accept
func (r *Registry) CheckParams(kind string, names []string) error {
	accepted := r.ParamNames(kind)
	if accepted == nil {
		return nil
	}
	var unknown []string
	for _, name := range names {
		found := false
		for _, candidate := range accepted {
			if strings.EqualFold(candidate, name) {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("engine %s: unknown parameters %v (accepted: %v)", kind, unknown, accepted)
	}
	return nil
}

func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("json"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

var converter = newConverter()

func newConverter() *conv.Converter {
	options := conv.DefaultOptions()
	options.IgnoreUnmapped = true
	return conv.NewConverter(options)
}

// DecodeParams converts resolved stage parameters into a typed struct pointer
func DecodeParams(params map[string]interface{}, target interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := converter.Convert(params, target); err != nil {
		return fmt.Errorf("failed to decode parameters into %T: %w", target, err)
	}
	return nil
}

// NewRegistry creates a registry with the supplied adapters
func NewRegistry(adapters ...Adapter) *Registry {
	ret := &Registry{
		adapters: make(map[string]Adapter),
		types:    x.NewRegistry(),
		params:   make(map[string]*x.Type),
	}
	for _, adapter := range adapters {
		ret.Register(adapter)
	}
	return ret
}
