package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	env := map[string]string{"FOO": "bar", "A": "1", "B": "2", "X": "x"}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no expressions", input: "just a plain string", expected: "just a plain string"},
		{name: "single expression", input: "value is ${env.FOO}", expected: "value is bar"},
		{name: "multiple expressions", input: "${env.A}-${env.B}-${env.A}", expected: "1-2-1"},
		{name: "unset variable becomes empty", input: "unset=${env.NOTSET}-end", expected: "unset=-end"},
		{name: "missing closing brace", input: "start ${env.X and more", expected: "start ${env.X and more"},
		{name: "invalid key kept literal", input: "${env.A-B} ${env.X}", expected: "${env.A-B} x"},
		{name: "stage references untouched", input: "${gs.energy}", expected: "${gs.energy}"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExpandEnv(tc.input, lookup))
		})
	}
}
