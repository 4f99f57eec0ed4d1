// Package meta loads workflow and configuration documents through afs.
package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service resolves locations against a base URL and downloads documents
type Service struct {
	fs      afs.Service
	baseURL string
	options []storage.Option
	lookup  func(string) (string, bool)
}

// URL returns an absolute URL for location
func (s *Service) URL(location string) string {
	if url.IsRelative(location) && s.baseURL != "" {
		return url.Join(s.baseURL, location)
	}
	if url.Scheme(location, "") == "" {
		return url.Normalize(location, file.Scheme)
	}
	return location
}

// Download returns document content with ${env.KEY} expressions expanded
func (s *Service) Download(ctx context.Context, location string) ([]byte, error) {
	URL := s.URL(location)
	data, err := s.fs.DownloadWithURL(ctx, URL, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", URL, err)
	}
	if !strings.Contains(string(data), envPrefix) {
		return data, nil
	}
	return []byte(ExpandEnv(string(data), s.lookup)), nil
}

// Load downloads location and decodes it as YAML into target
func (s *Service) Load(ctx context.Context, location string, target interface{}) error {
	data, err := s.Download(ctx, location)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", location, err)
	}
	return nil
}

// Exists returns true if location exists
func (s *Service) Exists(ctx context.Context, location string) (bool, error) {
	return s.fs.Exists(ctx, s.URL(location), s.options...)
}

// WithLookup overrides the environment lookup, mostly for tests
func (s *Service) WithLookup(lookup func(string) (string, bool)) *Service {
	s.lookup = lookup
	return s
}

// New creates a meta service
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	if baseURL != "" && url.Scheme(baseURL, "") == "" {
		baseURL = url.Normalize(baseURL, file.Scheme)
	}
	return &Service{fs: fs, baseURL: baseURL, options: options}
}
