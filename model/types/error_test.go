package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		description string
		err         error
		expected    string
	}{
		{description: "nil", err: nil, expected: ""},
		{description: "graph", err: NewGraphError("cycle"), expected: KindGraph},
		{description: "wrapped transient", err: fmt.Errorf("execute: %w", NewTransientError("execute", "hpc", errors.New("refused"))), expected: KindTransient},
		{description: "engine", err: &EngineOutputError{Engine: "nwchem", Reason: "missing log"}, expected: KindEngine},
		{description: "orphaned", err: &OrphanedJobError{Stage: "gs"}, expected: KindOrphaned},
		{description: "not found", err: &NotFoundError{Entity: "run", ID: "x"}, expected: KindNotFound},
		{description: "other", err: errors.New("boom"), expected: KindInternal},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, KindOf(tc.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("x: %w", NewTransientError("poll", "", errors.New("timeout")))))
	assert.False(t, IsTransient(&EngineOutputError{Engine: "gpaw", ExitCode: 1}))
	assert.Nil(t, NewTransientError("poll", "", nil))
}
