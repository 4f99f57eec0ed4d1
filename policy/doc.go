// Package policy defines the retry policy applied to transient transport
// failures. Engine computation failures are never retried by a policy; they
// are retried only on explicit operator request.
package policy
