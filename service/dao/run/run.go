// Package run holds helpers shared by run state stores.
package run

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
	"github.com/viant/chemflow/service/dao/criteria"
)

// Store persists runs keyed by run id
type Store = dao.Service[string, execution.Run]

// Attributes returns run attributes List parameters filter on
func Attributes(r *execution.Run) map[string]string {
	ret := map[string]string{"State": string(r.State)}
	if r.Workflow != nil {
		ret["Workflow"] = r.Workflow.Name
	}
	return ret
}

// Matches returns true when r satisfies parameters
func Matches(r *execution.Run, parameters []*dao.Parameter) bool {
	return criteria.Match(Attributes(r), parameters)
}

// Encode serializes a run
func Encode(r *execution.Run) ([]byte, error) {
	if r == nil {
		return nil, dao.ErrNilEntity
	}
	if r.ID == "" {
		return nil, dao.ErrInvalidID
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run %s: %w", r.ID, err)
	}
	return data, nil
}

// Conflict reports a save of run id from a stale version
func Conflict(id string, stored, expected int) error {
	return fmt.Errorf("%w: run %s is at version %d, saved from %d", dao.ErrConflict, id, stored, expected)
}

// Versioned is the version header of an encoded run
type Versioned struct {
	Version int `json:"version"`
}

// StoredVersion returns the version of an encoded run
func StoredVersion(data []byte) (int, error) {
	ret := Versioned{}
	if err := json.Unmarshal(data, &ret); err != nil {
		return 0, fmt.Errorf("failed to read run version: %w", err)
	}
	return ret.Version, nil
}

// Decode deserializes a run
func Decode(data []byte) (*execution.Run, error) {
	ret := &execution.Run{}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return ret, nil
}

// Sort orders runs by creation time, then id
func Sort(runs []*execution.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
}
