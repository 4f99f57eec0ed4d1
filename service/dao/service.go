// Package dao defines the storage contract run state stores implement.
package dao

import (
	"context"
)

// Service persists entities of type T keyed by K. Save replaces the stored entity atomically;
// versioned stores reject a stale entity with ErrConflict.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error
	Load(ctx context.Context, id K) (*T, error)
	Delete(ctx context.Context, id K) error
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
