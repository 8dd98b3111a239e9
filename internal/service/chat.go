package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/chatrelay/internal/adapter/otel"
	"github.com/Strob0t/chatrelay/internal/domain"
	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/logger"
	"github.com/Strob0t/chatrelay/internal/port/generator"
	"github.com/Strob0t/chatrelay/internal/port/objectstore"
)

// storeTimeout bounds each object store write. Writes are detached from
// the request context so a client that disconnects after generation
// still gets its turn logged.
const storeTimeout = 30 * time.Second

const contentTypeJSON = "application/json"

// TurnRequest is one user message with its sampling parameters.
type TurnRequest struct {
	Message     string  `json:"message"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// Validate checks the sampling parameters. Empty messages are allowed.
func (r TurnRequest) Validate() error {
	if err := validateUnit("temperature", r.Temperature); err != nil {
		return err
	}
	return validateUnit("top_p", r.TopP)
}

func validateUnit(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1, got %v", domain.ErrValidation, name, v)
	}
	return nil
}

// TurnResult is what the interface shows after a turn: the updated
// transcript, the new turn and the cleared input field.
type TurnResult struct {
	History turn.History `json:"history"`
	Turn    *turn.Turn   `json:"turn"`
	Input   string       `json:"input"`
}

// ChatService relays user messages to the generation service and logs
// every exchange to the object store.
type ChatService struct {
	gen       generator.Generator
	store     objectstore.Store
	history   *HistoryStore
	events    *EventPublisher
	metrics   *otel.Metrics
	delimiter string

	now   func() time.Time
	newID func() string
}

// NewChatService creates a ChatService. events and metrics may be nil.
func NewChatService(gen generator.Generator, store objectstore.Store, history *HistoryStore, events *EventPublisher, metrics *otel.Metrics, delimiter string) *ChatService {
	return &ChatService{
		gen:       gen,
		store:     store,
		history:   history,
		events:    events,
		metrics:   metrics,
		delimiter: delimiter,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SendTurn forwards the message, logs the exchange and appends it to the
// conversation history.
//
// Generation failures do not fail the turn: the reply becomes the error
// text and the turn is logged like any other. Object store failures are
// returned wrapping domain.ErrStorage and leave the history unchanged.
func (s *ChatService) SendTurn(ctx context.Context, conversationID string, req TurnRequest) (_ *TurnResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := s.newID()
	ctx, span := otel.StartTurnSpan(ctx, id, conversationID)
	defer func() { otel.EndSpan(span, err) }()

	log := slog.With(logger.Attrs(ctx)...).With("turn_id", id)

	t := turn.New(id, req.Message, "", s.now())
	t.Response, t.GenerationFailed = s.generate(ctx, log, req)

	if err = s.logTurn(ctx, t); err != nil {
		log.Error("turn not logged", "error", err)
		s.metrics.RecordTurn(ctx, "storage_error")
		s.events.TurnFailed(ctx, conversationID, id, err)
		return nil, err
	}

	hist, herr := s.history.Update(ctx, conversationID, func(h turn.History) (turn.History, bool) {
		return h.Append(t), true
	})
	if herr != nil {
		log.Warn("history not updated", "error", herr)
	}

	s.metrics.RecordTurn(ctx, "logged")
	s.events.TurnLogged(ctx, conversationID, t)
	log.Info("turn logged", "key", turn.Key(id), "generation_failed", t.GenerationFailed)

	return &TurnResult{History: hist, Turn: t, Input: ""}, nil
}

// generate returns the extracted reply, or the error text and true.
func (s *ChatService) generate(ctx context.Context, log *slog.Logger, req TurnRequest) (string, bool) {
	start := time.Now()
	raw, err := s.gen.Generate(ctx, generator.Request{
		Prompt:      req.Message,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	s.metrics.RecordGeneration(ctx, time.Since(start), err != nil)
	if err != nil {
		log.Warn("generation failed", "error", err)
		return turn.ErrorResponse(err), true
	}
	return turn.ExtractReply(raw, s.delimiter), false
}

// logTurn writes the record and then its initial tags under the same key.
func (s *ChatService) logTurn(ctx context.Context, t *turn.Turn) error {
	body, err := json.Marshal(t.Record())
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	key := turn.Key(t.ID)
	if err := s.store.PutObject(sctx, key, body, contentTypeJSON); err != nil {
		s.metrics.RecordStorageFailure(ctx, "put_object")
		return writeError("write record", err)
	}
	if err := s.store.PutTags(sctx, key, turn.InitialTags(t)); err != nil {
		s.metrics.RecordStorageFailure(ctx, "put_tags")
		return writeError("write tags", err)
	}
	return nil
}

// writeError wraps a failed write as an infrastructure failure. A write
// never targets a missing turn, so a not-found from the store means the
// store itself is misconfigured.
func writeError(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// storageError wraps err as an infrastructure failure unless the store
// already classified it.
func storageError(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
