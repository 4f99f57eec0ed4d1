package idgen

import "github.com/google/uuid"

// NewFunc generates run and job ids; tests replace it for stable ids.
var NewFunc = func() string { return uuid.NewString() }

// New returns a new random id
func New() string { return NewFunc() }
