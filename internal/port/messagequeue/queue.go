// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects for turn lifecycle events.
const (
	SubjectTurns        = "turns.>"
	SubjectTurnLogged   = "turns.logged"   // a turn record and its tags were written
	SubjectTurnFeedback = "turns.feedback" // a reviewer marked a turn
	SubjectTurnFailed   = "turns.failed"   // logging a turn failed
)

const dlqSuffix = ".dlq"

// DLQSubject returns the dead-letter subject for subject.
func DLQSubject(subject string) string {
	return subject + dlqSuffix
}
