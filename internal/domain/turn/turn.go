// Package turn models a single prompt/response exchange, its log record
// and the tag set used to track reviewer feedback.
package turn

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Strob0t/chatrelay/internal/domain"
)

// KeyPrefix is the object-store prefix all conversation logs live under.
const KeyPrefix = "conversation_logs/"

// TimestampLayout is the UTC second-precision layout used in records and tags.
const TimestampLayout = "2006-01-02T15:04:05Z"

// DefaultConfidence is recorded for turns that have no feedback yet.
const DefaultConfidence = 1.0

// FeedbackKind is the reviewer signal attached to a turn.
type FeedbackKind string

const (
	FeedbackNone    FeedbackKind = "none"
	FeedbackLike    FeedbackKind = "like"
	FeedbackDislike FeedbackKind = "dislike"
)

// ParseFeedbackKind accepts the kinds a user can submit: like or dislike.
func ParseFeedbackKind(s string) (FeedbackKind, error) {
	switch FeedbackKind(strings.ToLower(strings.TrimSpace(s))) {
	case FeedbackLike:
		return FeedbackLike, nil
	case FeedbackDislike:
		return FeedbackDislike, nil
	default:
		return "", fmt.Errorf("%w: feedback kind must be 'like' or 'dislike', got %q", domain.ErrValidation, s)
	}
}

// Turn is one prompt/response exchange.
type Turn struct {
	ID               string       `json:"id"`
	Prompt           string       `json:"prompt"`
	Response         string       `json:"response"`
	FeedbackType     FeedbackKind `json:"feedback_type"`
	Confidence       float64      `json:"confidence"`
	Timestamp        time.Time    `json:"timestamp"`
	GenerationFailed bool         `json:"generation_failed,omitempty"`
}

// New creates a turn with no feedback and default confidence.
func New(id, prompt, response string, at time.Time) *Turn {
	return &Turn{
		ID:           id,
		Prompt:       prompt,
		Response:     response,
		FeedbackType: FeedbackNone,
		Confidence:   DefaultConfidence,
		Timestamp:    at.UTC(),
	}
}

// Record is the immutable JSON body written to the object store.
type Record struct {
	Prompt       string       `json:"prompt"`
	Response     string       `json:"response"`
	FeedbackType FeedbackKind `json:"feedback_type"`
	Confidence   string       `json:"confidence"`
	Timestamp    string       `json:"timestamp"`
}

// Record returns the log record for t.
func (t *Turn) Record() Record {
	return Record{
		Prompt:       t.Prompt,
		Response:     t.Response,
		FeedbackType: t.FeedbackType,
		Confidence:   FormatConfidence(t.Confidence),
		Timestamp:    FormatTimestamp(t.Timestamp),
	}
}

// Key returns the object key of the log record for the given turn ID.
func Key(id string) string {
	return KeyPrefix + id + ".json"
}

// IDFromKey is the inverse of Key.
func IDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) || !strings.HasSuffix(key, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, KeyPrefix), ".json")
	return id, id != ""
}

// FormatConfidence renders a confidence with three decimal places.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.3f", c)
}

// ValidateConfidence rejects values outside [0, 1].
func ValidateConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1, got %v", domain.ErrValidation, c)
	}
	return nil
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
