package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/port/objectstore"
)

// LoggedTurn is a stored record together with its current tags.
type LoggedTurn struct {
	TurnID string      `json:"turn_id"`
	Key    string      `json:"key"`
	Record turn.Record `json:"record"`
	Tags   turn.Tags   `json:"tags"`
}

// ReviewService reads logged turns back for reviewers.
type ReviewService struct {
	store objectstore.Store
}

// NewReviewService creates a ReviewService.
func NewReviewService(store objectstore.Store) *ReviewService {
	return &ReviewService{store: store}
}

// Get returns the record and tags stored for turnID.
func (s *ReviewService) Get(ctx context.Context, turnID string) (*LoggedTurn, error) {
	turnID = strings.TrimSpace(turnID)
	if err := validateTurnID(turnID); err != nil {
		return nil, err
	}
	key := turn.Key(turnID)

	body, err := s.store.GetObject(ctx, key)
	if err != nil {
		return nil, storageError("read record", err)
	}
	var rec turn.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, storageError("decode record", err)
	}

	tags, err := s.store.GetTags(ctx, key)
	if err != nil {
		return nil, storageError("read tags", err)
	}

	return &LoggedTurn{TurnID: turnID, Key: key, Record: rec, Tags: tags}, nil
}

