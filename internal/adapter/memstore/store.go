// Package memstore implements the object store port in process memory.
// It backs local development and tests when no S3 server is available.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/Strob0t/chatrelay/internal/domain"
	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/port/objectstore"
)

type object struct {
	body        []byte
	contentType string
	tags        turn.Tags
}

// Store is a concurrency-safe in-memory objectstore.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*object
}

// New creates an empty store.
func New() *Store {
	return &Store{objects: make(map[string]*object)}
}

// PutObject writes body under key, keeping any existing tags.
func (s *Store) PutObject(_ context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		obj = &object{}
		s.objects[key] = obj
	}
	obj.body = slices.Clone(body)
	obj.contentType = contentType
	return nil
}

// GetObject reads the body stored under key.
func (s *Store) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, key)
	}
	return slices.Clone(obj.body), nil
}

// PutTags replaces the tag set of an existing key.
func (s *Store) PutTags(_ context.Context, key string, tags turn.Tags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("%w: object %s", domain.ErrNotFound, key)
	}
	obj.tags = maps.Clone(tags)
	return nil
}

// GetTags returns a copy of the tag set of key.
func (s *Store) GetTags(_ context.Context, key string) (turn.Tags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, key)
	}
	if obj.tags == nil {
		return turn.Tags{}, nil
	}
	return maps.Clone(obj.tags), nil
}

// Keys lists stored keys with the given prefix in sorted order.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Health always succeeds.
func (s *Store) Health(context.Context) error { return nil }

var _ objectstore.Store = (*Store)(nil)
