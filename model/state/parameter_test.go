package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameter_Resolve(t *testing.T) {
	values := map[string]interface{}{
		"gs.x":     5,
		"gs.dir":   "/work/gs",
		"geometry": "h2o.xyz",
	}
	lookup := func(ref *Reference) (interface{}, bool) {
		key := ref.Name
		if stage := ref.Stage(); stage != "" {
			key = stage + "." + ref.Name
		}
		v, ok := values[key]
		return v, ok
	}

	testCases := []struct {
		description string
		param       *Parameter
		expected    interface{}
		shouldError bool
	}{
		{
			description: "literal string",
			param:       &Parameter{Name: "basis", Kind: KindString, Value: "6-31g"},
			expected:    "6-31g",
		},
		{
			description: "whole reference keeps type",
			param: &Parameter{Name: "x", Kind: KindReference, Value: "${gs.x}",
				References: []*Reference{NewOutputReference("${gs.x}", "gs", "x")}},
			expected: 5,
		},
		{
			description: "embedded reference interpolates",
			param: &Parameter{Name: "restart", Kind: KindReference, Value: "${gs.dir}/gs.movecs",
				References: []*Reference{NewOutputReference("${gs.dir}", "gs", "dir")}},
			expected: "/work/gs/gs.movecs",
		},
		{
			description: "init reference",
			param: &Parameter{Name: "geometry", Kind: KindReference, Value: "${geometry}",
				References: []*Reference{NewInitReference("${geometry}", "geometry")}},
			expected: "h2o.xyz",
		},
		{
			description: "number coercion",
			param:       &Parameter{Name: "np", Kind: KindNumber, Value: "4"},
			expected:    4.0,
		},
		{
			description: "unresolved",
			param: &Parameter{Name: "y", Kind: KindReference, Value: "${td.y}",
				References: []*Reference{NewOutputReference("${td.y}", "td", "y")}},
			shouldError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			actual, err := tc.param.Resolve(lookup)
			if tc.shouldError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.EqualValues(t, tc.expected, actual)
		})
	}
}

func TestParameters(t *testing.T) {
	var params Parameters
	params.Add("np", 4)
	params.Add("label", "h2o")
	assert.Equal(t, []string{"np", "label"}, params.Names())
	p, ok := params.Get("np")
	assert.True(t, ok)
	assert.Equal(t, KindNumber, p.Kind)
	assert.Equal(t, map[string]interface{}{"np": 4, "label": "h2o"}, params.ToMap())
}
