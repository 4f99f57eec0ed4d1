// Package progress keeps aggregated job counters for a single workflow run.
// A tracker lives in the context; every component that receives the context
// can update the counters via UpdateCtx without a global registry.

package progress

import (
	"context"
	"sync"
	"time"
)

// Job state names counted by the tracker.
const (
	statePending    = "pending"
	stateReady      = "ready"
	stateStaging    = "staging"
	stateRunning    = "running"
	stateCollecting = "collecting"
	stateSucceeded  = "succeeded"
	stateFailed     = "failed"
	stateCancelled  = "cancelled"
)

// Counters holds job counts by lifecycle bucket
type Counters struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Delta represents an incremental counter change; fields are signed.
type Delta Counters

// Progress keeps aggregated counters for one run. It is safe for concurrent use.
type Progress struct {
	RunID     string
	Workflow  string
	StartedAt time.Time

	counters Counters
	mux      sync.Mutex
	onChange func(Counters)
}

// Count builds counters from job states.
func Count(states ...string) Counters {
	var ret Counters
	for _, state := range states {
		ret.add(bucket(state), 1)
		ret.Total++
	}
	return ret
}

// Transition returns the delta of a job moving between states.
func Transition(from, to string) Delta {
	var ret Counters
	ret.add(bucket(from), -1)
	ret.add(bucket(to), 1)
	return Delta(ret)
}

func bucket(state string) string {
	switch state {
	case stateReady, stateStaging, stateRunning, stateCollecting:
		return "active"
	}
	return state
}

func (c *Counters) add(bucket string, n int) {
	switch bucket {
	case statePending:
		c.Pending += n
	case "active":
		c.Active += n
	case stateSucceeded:
		c.Succeeded += n
	case stateFailed:
		c.Failed += n
	case stateCancelled:
		c.Cancelled += n
	}
}

// Reset replaces the counters, for example after loading a persisted run.
func (p *Progress) Reset(c Counters) {
	if p == nil {
		return
	}
	p.mux.Lock()
	p.counters = c
	cb := p.onChange
	p.mux.Unlock()
	if cb != nil {
		cb(c)
	}
}

// Update applies the supplied delta. The onChange callback is invoked outside the
// critical section with a copy of the counters.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mux.Lock()
	p.counters.Total += d.Total
	p.counters.Pending += d.Pending
	p.counters.Active += d.Active
	p.counters.Succeeded += d.Succeeded
	p.counters.Failed += d.Failed
	p.counters.Cancelled += d.Cancelled
	snapshot := p.counters
	cb := p.onChange
	p.mux.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.counters
}

// OnChange registers a callback invoked after every update. Passing nil disables it.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mux.Lock()
	p.onChange = cb
	p.mux.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a tracker, embeds it in a derived context and returns both.
func WithNewTracker(ctx context.Context, runID, workflow string, onChange func(Counters)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		RunID:     runID,
		Workflow:  workflow,
		StartedAt: time.Now(),
		onChange:  onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx applies the delta to the tracker in ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
