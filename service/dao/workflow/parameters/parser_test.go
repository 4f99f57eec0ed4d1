package parameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/chemflow/model/state"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    *state.Parameter
		shouldError bool
	}{
		{
			description: "plain name",
			input:       "basis",
			expected:    &state.Parameter{Name: "basis"},
		},
		{
			description: "path kind",
			input:       "geometry[path]",
			expected:    &state.Parameter{Name: "geometry", Kind: state.KindPath},
		},
		{
			description: "number kind",
			input:       "np[NUMBER]",
			expected:    &state.Parameter{Name: "np", Kind: state.KindNumber},
		},
		{
			description: "unsupported kind",
			input:       "np[int]",
			shouldError: true,
		},
		{
			description: "missing closing bracket",
			input:       "geometry[path",
			shouldError: true,
		},
		{
			description: "trailing text",
			input:       "geometry[path]x",
			shouldError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			result, err := Parse([]byte(tc.input))
			if tc.shouldError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.EqualValues(t, tc.expected, result)
		})
	}
}

func TestParseReferences(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    []*state.Reference
		shouldError bool
	}{
		{
			description: "no references",
			input:       "6-31g",
		},
		{
			description: "stage output",
			input:       "${gs.x}",
			expected:    []*state.Reference{state.NewOutputReference("${gs.x}", "gs", "x")},
		},
		{
			description: "init parameter",
			input:       "${geometry}",
			expected:    []*state.Reference{state.NewInitReference("${geometry}", "geometry")},
		},
		{
			description: "embedded and multiple",
			input:       "${gs.dir}/restart-${td_delta.log}.nwo",
			expected: []*state.Reference{
				state.NewOutputReference("${gs.dir}", "gs", "dir"),
				state.NewOutputReference("${td_delta.log}", "td_delta", "log"),
			},
		},
		{
			description: "lone dollar is text",
			input:       "cost $5",
		},
		{
			description: "unterminated",
			input:       "${gs.x",
			shouldError: true,
		},
		{
			description: "empty expression",
			input:       "${}",
			shouldError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			result, err := ParseReferences(tc.input)
			if tc.shouldError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.EqualValues(t, tc.expected, result)
		})
	}
}
