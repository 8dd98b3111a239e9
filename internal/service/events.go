package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/chatrelay/internal/adapter/ws"
	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/logger"
	"github.com/Strob0t/chatrelay/internal/port/broadcast"
	"github.com/Strob0t/chatrelay/internal/port/messagequeue"
)

// EventPublisher announces turn lifecycle events. With a queue, events go
// to NATS and reach the WebSocket hub through RelayToHub; without one
// they are broadcast to the hub directly. Publishing is best-effort and
// never fails the calling operation.
type EventPublisher struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewEventPublisher creates a publisher. Either argument may be nil.
func NewEventPublisher(queue messagequeue.Queue, hub broadcast.Broadcaster) *EventPublisher {
	return &EventPublisher{queue: queue, hub: hub}
}

// TurnLogged announces a turn whose record and tags were written.
func (p *EventPublisher) TurnLogged(ctx context.Context, conversationID string, t *turn.Turn) {
	p.publish(ctx, messagequeue.SubjectTurnLogged, messagequeue.TurnLoggedPayload{
		TurnID:           t.ID,
		ConversationID:   conversationID,
		Key:              turn.Key(t.ID),
		GenerationFailed: t.GenerationFailed,
		Timestamp:        turn.FormatTimestamp(t.Timestamp),
	})
}

// TurnFailed announces a turn that could not be logged.
func (p *EventPublisher) TurnFailed(ctx context.Context, conversationID, turnID string, cause error) {
	p.publish(ctx, messagequeue.SubjectTurnFailed, messagequeue.TurnFailedPayload{
		TurnID:         turnID,
		ConversationID: conversationID,
		Error:          cause.Error(),
	})
}

// TurnFeedback announces recorded feedback.
func (p *EventPublisher) TurnFeedback(ctx context.Context, conversationID string, res *FeedbackResult) {
	p.publish(ctx, messagequeue.SubjectTurnFeedback, messagequeue.TurnFeedbackPayload{
		TurnID:         res.TurnID,
		ConversationID: conversationID,
		FeedbackType:   string(res.FeedbackType),
		Confidence:     res.Confidence,
	})
}

func (p *EventPublisher) publish(ctx context.Context, subject string, payload any) {
	if p == nil {
		return
	}
	if p.queue != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.ErrorContext(ctx, "marshal event", "subject", subject, "error", err)
			return
		}
		if err := p.queue.Publish(ctx, subject, data); err != nil {
			slog.WarnContext(ctx, "publish event failed", append(logger.Attrs(ctx), "subject", subject, "error", err)...)
		}
		return
	}
	if p.hub != nil {
		p.hub.BroadcastEvent(ctx, eventType(subject), payload)
	}
}

// RelayToHub forwards turn events from the queue to the hub. The returned
// function stops the subscription.
func RelayToHub(ctx context.Context, queue messagequeue.Queue, hub broadcast.Broadcaster) (func(), error) {
	return queue.Subscribe(ctx, messagequeue.SubjectTurns, func(ctx context.Context, subject string, data []byte) error {
		typ := eventType(subject)
		if typ == "" {
			return nil
		}
		hub.BroadcastEvent(ctx, typ, json.RawMessage(data))
		return nil
	})
}

func eventType(subject string) string {
	switch subject {
	case messagequeue.SubjectTurnLogged:
		return ws.EventTurnLogged
	case messagequeue.SubjectTurnFeedback:
		return ws.EventTurnFeedback
	case messagequeue.SubjectTurnFailed:
		return ws.EventTurnFailed
	default:
		return ""
	}
}
