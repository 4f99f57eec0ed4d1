package local

import (
	"time"

	"github.com/viant/chemflow/service/transport"
)

// Option represents local transport option
type Option func(s *Service)

// WithRunner sets the shell runner
func WithRunner(runner transport.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// WithTimeout bounds each shell command
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithMpirun sets the mpirun command
func WithMpirun(mpirun string) Option {
	return func(s *Service) {
		s.mpirun = mpirun
	}
}
