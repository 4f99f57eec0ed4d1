package fs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
	"github.com/viant/chemflow/service/dao/run"
)

const (
	ext     = ".json"
	tempExt = ".json.tmp"
)

// Service implements a filesystem run store, one JSON file per run. Each save
// writes a temporary file and renames it over the previous record; a save from
// a stale version fails with dao.ErrConflict.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

var _ dao.Service[string, execution.Run] = (*Service)(nil)

// Save atomically replaces the run record and advances r.Version
func (s *Service) Save(ctx context.Context, r *execution.Run) (err error) {
	if r == nil {
		return dao.ErrNilEntity
	}
	if r.ID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.runURL(r.ID, ext)
	stored, err := s.storedVersion(ctx, URL)
	if err != nil {
		return err
	}
	if stored != r.Version {
		return run.Conflict(r.ID, stored, r.Version)
	}
	expected := r.Version
	r.Version++
	defer func() {
		if err != nil {
			r.Version = expected
		}
	}()
	data, err := run.Encode(r)
	if err != nil {
		return err
	}
	tempURL := s.runURL(r.ID, tempExt)
	if err = s.fs.Upload(ctx, tempURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write run %s: %w", r.ID, err)
	}
	if err = s.commit(ctx, tempURL, URL); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.ID, err)
	}
	return nil
}

// commit replaces destURL with tempURL. Local files are renamed in place; other
// storages have no rename, so the previous record is removed before the move.
func (s *Service) commit(ctx context.Context, tempURL, destURL string) error {
	if url.Scheme(destURL, file.Scheme) == file.Scheme {
		return os.Rename(url.Path(tempURL), url.Path(destURL))
	}
	exists, err := s.fs.Exists(ctx, destURL)
	if err != nil {
		return err
	}
	if exists {
		if err = s.fs.Delete(ctx, destURL); err != nil {
			return err
		}
	}
	return s.fs.Move(ctx, tempURL, destURL)
}

// storedVersion returns the version of the stored record, 0 when there is none
func (s *Service) storedVersion(ctx context.Context, URL string) (int, error) {
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil || !exists {
		return 0, err
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return 0, fmt.Errorf("failed to read run record %s: %w", URL, err)
	}
	return run.StoredVersion(data)
}

// Load reads a run or returns dao.ErrNotFound
func (s *Service) Load(ctx context.Context, id string) (*execution.Run, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	URL := s.runURL(id, ext)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check run %s: %w", id, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return run.Decode(data)
}

// Delete removes a run record
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.runURL(id, ext)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check run %s: %w", id, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	if err = s.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// List reads all run records matching parameters, oldest first; unreadable records are skipped
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var runs []*execution.Run
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ext) {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			logging.FromContext(ctx).Warn("skipping unreadable run record", "url", object.URL(), "error", err)
			continue
		}
		r, err := run.Decode(data)
		if err != nil {
			logging.FromContext(ctx).Warn("skipping malformed run record", "url", object.URL(), "error", err)
			continue
		}
		if run.Matches(r, parameters) {
			runs = append(runs, r)
		}
	}
	run.Sort(runs)
	return runs, nil
}

func (s *Service) runURL(id, extension string) string {
	return url.Join(s.baseURL, id+extension)
}

// New creates a filesystem run store under baseURL
func New(ctx context.Context, baseURL string, fs afs.Service) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if fs == nil {
		fs = afs.New()
	}
	if url.Scheme(baseURL, "") == "" {
		baseURL = url.Normalize(baseURL, file.Scheme)
	}
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &Service{baseURL: baseURL, fs: fs}, nil
}
