package policy

import (
	"math"
	"strings"
	"time"
)

// Retry types.
const (
	TypeExponential = "exponential"
	TypeFixed       = "fixed"
	TypeNone        = "none"
)

// Retry describes a bounded backoff for transient failures. MaxAttempts counts every
// attempt, including the first one.
type Retry struct {
	Type        string  `json:"type,omitempty" yaml:"type,omitempty"`
	MaxAttempts int     `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	Delay       string  `json:"delay,omitempty" yaml:"delay,omitempty"`
	Multiplier  float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	MaxDelay    string  `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
}

// DefaultRetry returns 3 attempts with exponential backoff from 1s, capped at 30s.
func DefaultRetry() *Retry {
	return &Retry{
		Type:        TypeExponential,
		MaxAttempts: 3,
		Delay:       "1s",
		Multiplier:  2,
		MaxDelay:    "30s",
	}
}

// Merge returns r with empty fields taken from base. A nil r returns base.
func (r *Retry) Merge(base *Retry) *Retry {
	if r == nil {
		return base
	}
	if base == nil {
		return r
	}
	ret := *r
	if ret.Type == "" {
		ret.Type = base.Type
	}
	if ret.MaxAttempts == 0 {
		ret.MaxAttempts = base.MaxAttempts
	}
	if ret.Delay == "" {
		ret.Delay = base.Delay
	}
	if ret.Multiplier == 0 {
		ret.Multiplier = base.Multiplier
	}
	if ret.MaxDelay == "" {
		ret.MaxDelay = base.MaxDelay
	}
	return &ret
}

// Next reports whether another attempt is allowed after failed attempts and the delay before it.
func (r *Retry) Next(failed int) (bool, time.Duration) {
	if r == nil {
		r = DefaultRetry()
	}
	if strings.ToLower(r.Type) == TypeNone {
		return false, 0
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetry().MaxAttempts
	}
	if failed >= maxAttempts {
		return false, 0
	}
	baseDelay := time.Second
	if r.Delay != "" {
		if d, err := time.ParseDuration(r.Delay); err == nil {
			baseDelay = d
		}
	}
	if strings.ToLower(r.Type) == TypeFixed {
		return true, baseDelay
	}
	mult := r.Multiplier
	if mult <= 1 {
		mult = 2
	}
	exp := failed - 1
	if exp < 0 {
		exp = 0
	}
	delay := float64(baseDelay) * math.Pow(mult, float64(exp))
	if r.MaxDelay != "" {
		if md, err := time.ParseDuration(r.MaxDelay); err == nil && time.Duration(delay) > md {
			delay = float64(md)
		}
	}
	return true, time.Duration(delay)
}
