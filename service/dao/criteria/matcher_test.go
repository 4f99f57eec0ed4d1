package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/chemflow/service/dao"
)

func TestMatch(t *testing.T) {
	attributes := map[string]string{"State": "running", "Workflow": "h2o"}
	testCases := []struct {
		description string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", expect: true},
		{description: "state match", parameters: []*dao.Parameter{dao.NewParameter("State", "running")}, expect: true},
		{description: "state mismatch", parameters: []*dao.Parameter{dao.NewParameter("State", "failed")}},
		{description: "any of", parameters: []*dao.Parameter{dao.NewParameter("State", "failed", "running")}, expect: true},
		{description: "both", parameters: []*dao.Parameter{dao.NewParameter("State", "running"), dao.NewParameter("Workflow", "co2")}},
		{description: "unknown attribute", parameters: []*dao.Parameter{dao.NewParameter("Owner", "x")}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, Match(attributes, tc.parameters))
		})
	}
}
