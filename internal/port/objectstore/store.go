// Package objectstore defines the port for the conversation log store: an
// S3-compatible key/value store with mutable per-object tags.
package objectstore

import (
	"context"

	"github.com/Strob0t/chatrelay/internal/domain/turn"
)

// Store persists immutable log records and their tag sets.
// Implementations return an error wrapping domain.ErrNotFound for missing keys.
type Store interface {
	// PutObject writes body under key.
	PutObject(ctx context.Context, key string, body []byte, contentType string) error

	// GetObject reads the body stored under key.
	GetObject(ctx context.Context, key string) ([]byte, error)

	// PutTags replaces the whole tag set of key.
	PutTags(ctx context.Context, key string, tags turn.Tags) error

	// GetTags returns the current tag set of key.
	GetTags(ctx context.Context, key string) (turn.Tags, error)
}
