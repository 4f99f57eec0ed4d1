package workdir

import "time"

// Change records an artifact overwritten in a working directory
type Change struct {
	Path    string    `json:"path"`
	Added   int       `json:"added"`
	Deleted int       `json:"deleted"`
	Diff    string    `json:"diff,omitempty"`
	At      time.Time `json:"at"`
}
