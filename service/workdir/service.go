// Package workdir manages job working directories: writing input artifacts,
// reading outputs back and auditing artifacts overwritten by a retried job.
package workdir

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	sgdiff "github.com/sourcegraph/go-diff/diff"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/chemflow/internal/clock"
)

// Service reads and writes artifacts under job working directories
type Service struct {
	fs           afs.Service
	contextLines int
	maxDiffBytes int
}

// Ensure creates dir when missing
func (s *Service) Ensure(ctx context.Context, dir string) error {
	URL := s.url(dir)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", URL, err)
	}
	if exists {
		return nil
	}
	if err = s.fs.Create(ctx, URL, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("failed to create %s: %w", URL, err)
	}
	return nil
}

// Write stores content as dir/name. When a different file already exists the
// returned Change describes the overwrite; identical content is left untouched.
func (s *Service) Write(ctx context.Context, dir, name string, content []byte) (*Change, error) {
	URL := url.Join(s.url(dir), name)
	var change *Change
	exists, _ := s.fs.Exists(ctx, URL)
	if !exists {
		if err := s.Ensure(ctx, dir); err != nil {
			return nil, err
		}
	}
	if exists {
		previous, err := s.fs.DownloadWithURL(ctx, URL)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", URL, err)
		}
		if bytes.Equal(previous, content) {
			return nil, nil
		}
		if change, err = s.diff(name, previous, content); err != nil {
			return nil, err
		}
	}
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", URL, err)
	}
	return change, nil
}

// Read returns dir/name content
func (s *Service) Read(ctx context.Context, dir, name string) ([]byte, error) {
	URL := url.Join(s.url(dir), name)
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", URL, err)
	}
	return data, nil
}

// Exists returns true if dir/name exists
func (s *Service) Exists(ctx context.Context, dir, name string) bool {
	ok, _ := s.fs.Exists(ctx, url.Join(s.url(dir), name))
	return ok
}

// Remove deletes the named files from dir, ignoring missing ones
func (s *Service) Remove(ctx context.Context, dir string, names ...string) error {
	for _, name := range names {
		URL := url.Join(s.url(dir), name)
		if ok, _ := s.fs.Exists(ctx, URL); !ok {
			continue
		}
		if err := s.fs.Delete(ctx, URL); err != nil {
			return fmt.Errorf("failed to remove %s: %w", URL, err)
		}
	}
	return nil
}

// Tail returns up to n last lines of dir/name, or empty text when unreadable
func (s *Service) Tail(ctx context.Context, dir, name string, n int) string {
	data, err := s.Read(ctx, dir, name)
	if err != nil {
		return ""
	}
	return Tail(string(data), n)
}

// List returns file names in dir
func (s *Service) List(ctx context.Context, dir string) ([]string, error) {
	objects, err := s.fs.List(ctx, s.url(dir))
	if err != nil {
		return nil, err
	}
	var ret []string
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		ret = append(ret, object.Name())
	}
	return ret, nil
}

func (s *Service) diff(name string, previous, content []byte) (*Change, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(previous)),
		B:        difflib.SplitLines(string(content)),
		FromFile: name + ".orig",
		ToFile:   name,
		Context:  s.contextLines,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s: %w", name, err)
	}
	change := &Change{Path: name, At: clock.Now()}
	if fileDiff, err := sgdiff.ParseFileDiff([]byte(text)); err == nil {
		stat := fileDiff.Stat()
		change.Added = int(stat.Added + stat.Changed)
		change.Deleted = int(stat.Deleted + stat.Changed)
	}
	if len(text) > s.maxDiffBytes {
		text = text[:s.maxDiffBytes] + "\n... (truncated)\n"
	}
	change.Diff = text
	return change, nil
}

func (s *Service) url(dir string) string {
	if url.Scheme(dir, "") == "" {
		return url.Normalize(dir, file.Scheme)
	}
	return dir
}

// Tail returns up to n last non-empty-terminated lines of text
func Tail(text string, n int) string {
	text = strings.TrimRight(text, "\n")
	if n <= 0 || text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// New creates a workdir service
func New(fs afs.Service) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs, contextLines: 2, maxDiffBytes: 16 * 1024}
}
