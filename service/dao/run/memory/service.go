package memory

import (
	"context"
	"sync"

	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
	"github.com/viant/chemflow/service/dao/run"
)

// Service implements an in-memory run store. Runs are stored serialized so
// callers never share state with the store; a save from a stale version fails
// with dao.ErrConflict.
type Service struct {
	runs map[string][]byte
	mux  sync.RWMutex
}

var _ dao.Service[string, execution.Run] = (*Service)(nil)

// Save persists a copy of r and advances r.Version
func (s *Service) Save(_ context.Context, r *execution.Run) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	stored := 0
	if data, ok := s.runs[r.ID]; ok {
		var err error
		if stored, err = run.StoredVersion(data); err != nil {
			return err
		}
	}
	if stored != r.Version {
		return run.Conflict(r.ID, stored, r.Version)
	}
	r.Version++
	data, err := run.Encode(r)
	if err != nil {
		r.Version--
		return err
	}
	s.runs[r.ID] = data
	return nil
}

// Load returns a copy of the run or dao.ErrNotFound
func (s *Service) Load(_ context.Context, id string) (*execution.Run, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	data, ok := s.runs[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return run.Decode(data)
}

// Delete removes a run
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.runs[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.runs, id)
	return nil
}

// List returns copies of runs matching parameters, oldest first
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*execution.Run, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*execution.Run, 0, len(s.runs))
	for _, data := range s.runs {
		r, err := run.Decode(data)
		if err != nil {
			return nil, err
		}
		if run.Matches(r, parameters) {
			out = append(out, r)
		}
	}
	run.Sort(out)
	return out, nil
}

// New creates a memory run store
func New() *Service {
	return &Service{runs: map[string][]byte{}}
}
