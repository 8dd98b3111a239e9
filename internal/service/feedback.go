package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/chatrelay/internal/adapter/otel"
	"github.com/Strob0t/chatrelay/internal/domain"
	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/logger"
	"github.com/Strob0t/chatrelay/internal/port/objectstore"
)

// FeedbackRequest rates one logged turn. An empty TurnID targets the last
// turn of the conversation; a nil Confidence means full confidence.
type FeedbackRequest struct {
	TurnID     string   `json:"turn_id,omitempty"`
	Kind       string   `json:"kind"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// FeedbackResult describes the tag update that was written.
type FeedbackResult struct {
	TurnID       string            `json:"turn_id"`
	FeedbackType turn.FeedbackKind `json:"feedback_type"`
	Confidence   string            `json:"confidence"`
	Processed    bool              `json:"processed"`
	History      turn.History      `json:"history"`
}

// FeedbackService marks logged turns as reviewed.
type FeedbackService struct {
	store   objectstore.Store
	history *HistoryStore
	events  *EventPublisher
	metrics *otel.Metrics
}

// NewFeedbackService creates a FeedbackService. events and metrics may be nil.
func NewFeedbackService(store objectstore.Store, history *HistoryStore, events *EventPublisher, metrics *otel.Metrics) *FeedbackService {
	return &FeedbackService{store: store, history: history, events: events, metrics: metrics}
}

// Record overwrites the tags of the turn's record with processed=true, the
// feedback kind and the confidence. Other existing tags are kept and the
// record body is never touched.
func (s *FeedbackService) Record(ctx context.Context, conversationID string, req FeedbackRequest) (_ *FeedbackResult, err error) {
	kind, err := turn.ParseFeedbackKind(req.Kind)
	if err != nil {
		return nil, err
	}
	confidence := turn.DefaultConfidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if err := turn.ValidateConfidence(confidence); err != nil {
		return nil, err
	}

	hist, herr := s.history.Load(ctx, conversationID)
	if herr != nil {
		slog.WarnContext(ctx, "history unavailable", append(logger.Attrs(ctx), "error", herr)...)
		hist = turn.History{}
	}

	turnID, err := resolveTurnID(req.TurnID, hist)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartFeedbackSpan(ctx, turnID, string(kind))
	defer func() { otel.EndSpan(span, err) }()

	tags, err := s.updateTags(ctx, turnID, kind, confidence)
	if err != nil {
		return nil, err
	}

	if updated, herr := s.history.Update(ctx, conversationID, func(h turn.History) (turn.History, bool) {
		return h.WithFeedback(turnID, kind)
	}); herr != nil {
		slog.WarnContext(ctx, "history not updated", append(logger.Attrs(ctx), "turn_id", turnID, "error", herr)...)
	} else {
		hist = updated
	}

	res := &FeedbackResult{
		TurnID:       turnID,
		FeedbackType: kind,
		Confidence:   tags[turn.TagConfidence],
		Processed:    true,
		History:      hist,
	}

	s.metrics.RecordFeedback(ctx, string(kind))
	s.events.TurnFeedback(ctx, conversationID, res)
	slog.InfoContext(ctx, "feedback recorded", append(logger.Attrs(ctx),
		"turn_id", turnID, "feedback_type", kind, "confidence", res.Confidence)...)

	return res, nil
}

// updateTags reads the current tags and writes them back with the
// feedback applied. The read-modify-write is detached from request
// cancellation and bounded by storeTimeout.
func (s *FeedbackService) updateTags(ctx context.Context, turnID string, kind turn.FeedbackKind, confidence float64) (turn.Tags, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	key := turn.Key(turnID)
	existing, err := s.store.GetTags(sctx, key)
	if err != nil {
		return nil, storageError("read tags", err)
	}

	tags := existing.Merge(turn.FeedbackTags(kind, confidence))
	if err := s.store.PutTags(sctx, key, tags); err != nil {
		s.metrics.RecordStorageFailure(ctx, "put_tags")
		return nil, writeError("write tags", err)
	}
	return tags, nil
}

// resolveTurnID validates an explicit turn ID or falls back to the last
// turn in hist.
func resolveTurnID(id string, hist turn.History) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		last, ok := hist.Last()
		if !ok {
			return "", fmt.Errorf("%w: no turn to rate in this conversation", domain.ErrNotFound)
		}
		return last.TurnID, nil
	}
	if err := validateTurnID(id); err != nil {
		return "", err
	}
	return id, nil
}

func validateTurnID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid turn id %q", domain.ErrValidation, id)
	}
	return nil
}
