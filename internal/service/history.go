package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/port/cache"
)

const (
	historyKeyPrefix = "history:"
	historyStripes   = 64
)

// HistoryStore keeps the transcript of each conversation in a cache.
// Histories are transient: they expire after ttl and are never written
// to the object store.
//
// Update serializes read-modify-write cycles per conversation inside one
// process. Replicas sharing the NATS KV bucket are not coordinated.
type HistoryStore struct {
	cache cache.Cache
	ttl   time.Duration
	locks [historyStripes]sync.Mutex
}

// NewHistoryStore creates a HistoryStore over c.
func NewHistoryStore(c cache.Cache, ttl time.Duration) *HistoryStore {
	return &HistoryStore{cache: c, ttl: ttl}
}

// Load returns the history of a conversation. Unknown conversations have
// an empty history.
func (s *HistoryStore) Load(ctx context.Context, conversationID string) (turn.History, error) {
	data, ok, err := s.cache.Get(ctx, historyKey(conversationID))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !ok {
		return turn.History{}, nil
	}

	var h turn.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return h, nil
}

// Save replaces the history of a conversation.
func (s *HistoryStore) Save(ctx context.Context, conversationID string, h turn.History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.cache.Set(ctx, historyKey(conversationID), data, s.ttl); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Update loads the history of a conversation, applies fn and saves the
// result when fn reports a change. An unreadable history is treated as
// empty. The returned history is always the one fn produced; the error
// reports a failed load or save.
func (s *HistoryStore) Update(ctx context.Context, conversationID string, fn func(turn.History) (turn.History, bool)) (turn.History, error) {
	mu := s.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	h, loadErr := s.Load(ctx, conversationID)
	if loadErr != nil {
		h = turn.History{}
	}
	h, changed := fn(h)
	if !changed {
		return h, loadErr
	}
	return h, errors.Join(loadErr, s.Save(ctx, conversationID, h))
}

func (s *HistoryStore) lockFor(conversationID string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(conversationID))
	return &s.locks[f.Sum32()%historyStripes]
}

// Clear forgets the history of a conversation.
func (s *HistoryStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.cache.Delete(ctx, historyKey(conversationID)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func historyKey(conversationID string) string {
	return historyKeyPrefix + conversationID
}
