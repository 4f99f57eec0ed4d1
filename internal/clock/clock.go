// Package clock supplies timestamps for runs and jobs.
package clock

import "time"

// NowFunc is replaced in tests that need fixed timestamps
var NowFunc = time.Now

// Now returns the current time in UTC
func Now() time.Time { return NowFunc().UTC() }
