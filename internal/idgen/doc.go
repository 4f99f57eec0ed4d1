// Package idgen generates run and job identifiers. Callers treat ids as opaque strings.
package idgen
