// Package store keeps the autosaved canvas between runs.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store is a small key/value store. Get returns ErrNotFound for missing keys.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}
