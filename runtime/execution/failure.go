package execution

import (
	"errors"

	"github.com/viant/chemflow/model/types"
)

// Failure is the persisted form of a job error
type Failure struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	ExitCode  int    `json:"exitCode,omitempty"`
	LogTail   string `json:"logTail,omitempty"`
	Artifacts string `json:"artifacts,omitempty"`
}

func (f *Failure) Error() string {
	return f.Kind + ": " + f.Message
}

// NewFailure classifies err and captures engine diagnostics
func NewFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	ret := &Failure{Kind: types.KindOf(err), Message: err.Error()}
	var engineErr *types.EngineOutputError
	if errors.As(err, &engineErr) {
		ret.ExitCode = engineErr.ExitCode
		ret.LogTail = engineErr.LogTail
		ret.Artifacts = engineErr.Artifacts
	}
	return ret
}
