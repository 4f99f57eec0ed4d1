package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestNode_Pairs(t *testing.T) {
	var doc yaml.Node
	err := yaml.Unmarshal([]byte("z: 1\na: two\nm: [x, y]\nn: ~\nf: 1.5\n"), &doc)
	assert.NoError(t, err)
	root := (*Node)(&doc).Root()

	var keys []string
	values := map[string]interface{}{}
	err = root.Pairs(func(key string, node *Node) error {
		keys = append(keys, key)
		values[key] = node.Interface()
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m", "n", "f"}, keys)
	assert.Equal(t, 1, values["z"])
	assert.Equal(t, "two", values["a"])
	assert.Equal(t, []interface{}{"x", "y"}, values["m"])
	assert.Nil(t, values["n"])
	assert.Equal(t, 1.5, values["f"])

	list, err := root.Lookup("M").Strings()
	assert.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, list)
	assert.Nil(t, root.Lookup("missing"))
}
