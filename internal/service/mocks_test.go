package service

import (
	"context"
	"sync"
	"time"

	"github.com/Strob0t/chatrelay/internal/adapter/memstore"
	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/port/generator"
	"github.com/Strob0t/chatrelay/internal/port/messagequeue"
)

// fakeGenerator returns raw or err and records every request.
type fakeGenerator struct {
	raw   string
	err   error
	calls []generator.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req generator.Request) (string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	return g.raw, nil
}

// staticGenerator always returns the same raw output. It is safe for
// concurrent use.
type staticGenerator string

func (g staticGenerator) Generate(context.Context, generator.Request) (string, error) {
	return string(g), nil
}

// countingStore wraps memstore with call counters and injectable failures.
type countingStore struct {
	*memstore.Store
	putObjectErr error
	putTagsErr   error
	getTagsErr   error

	putObjects int
	putTags    int

	// honorCancel makes tag calls fail once their context is done.
	honorCancel bool
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memstore.New()}
}

func (s *countingStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	s.putObjects++
	if s.putObjectErr != nil {
		return s.putObjectErr
	}
	return s.Store.PutObject(ctx, key, body, contentType)
}

func (s *countingStore) PutTags(ctx context.Context, key string, tags turn.Tags) error {
	s.putTags++
	if s.honorCancel && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.putTagsErr != nil {
		return s.putTagsErr
	}
	return s.Store.PutTags(ctx, key, tags)
}

func (s *countingStore) GetTags(ctx context.Context, key string) (turn.Tags, error) {
	if s.honorCancel && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.getTagsErr != nil {
		return nil, s.getTagsErr
	}
	return s.Store.GetTags(ctx, key)
}

// mapCache is a minimal cache.Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type broadcastCall struct {
	eventType string
	payload   any
}

// fakeBroadcaster records broadcasts.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastCall
}

func (b *fakeBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastCall{eventType: eventType, payload: payload})
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.eventType
	}
	return out
}

type publishedMsg struct {
	subject string
	data    []byte
}

// fakeQueue records publishes and hands subscribers to the test.
type fakeQueue struct {
	mu         sync.Mutex
	published  []publishedMsg
	publishErr error
	handlers   map[string]messagequeue.Handler
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{handlers: make(map[string]messagequeue.Handler)}
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = h
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.handlers, subject)
	}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

// fixedClock and sequentialIDs make turns deterministic.
func fixedClock() time.Time {
	return time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
}

func sequentialIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

const (
	turnA = "0b6c2f57-3c8e-4f3c-9a0e-1f7c2d5b9a01"
	turnB = "6f1e9d3a-2b47-4c8d-8e51-7a0b3c9d2e02"
)
