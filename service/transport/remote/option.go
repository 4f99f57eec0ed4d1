package remote

import "time"

// Option represents remote transport option
type Option func(s *Service)

// WithCopier sets the file copier
func WithCopier(copier Copier) Option {
	return func(s *Service) {
		s.copier = copier
	}
}

// WithConnector sets the session connector
func WithConnector(connector Connector) Option {
	return func(s *Service) {
		s.connector = connector
	}
}

// WithTimeout bounds each remote command
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithMpirun sets the default mpirun command
func WithMpirun(mpirun string) Option {
	return func(s *Service) {
		s.mpirun = mpirun
	}
}
