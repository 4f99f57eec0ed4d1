package criteria

import (
	"github.com/viant/chemflow/service/dao"
)

// Match returns true when every parameter matches the named attribute; a string
// slice parameter matches any of its values. Unknown names match everything.
func Match(attributes map[string]string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		actual, ok := attributes[parameter.Name]
		if !ok {
			continue
		}
		switch expected := parameter.Value.(type) {
		case string:
			if expected != actual {
				return false
			}
		case []string:
			found := false
			for _, candidate := range expected {
				if candidate == actual {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
