package turn

import "maps"

// Tag keys written alongside every log record.
const (
	TagSessionID    = "session_id"
	TagProcessed    = "processed"
	TagFeedbackType = "feedback_type"
	TagConfidence   = "confidence"
	TagTimestamp    = "timestamp"
)

// Tags is a flat set of string pairs attached to a stored object. It is
// mutable independently of the object body.
type Tags map[string]string

// InitialTags returns the tag set written together with the record.
func InitialTags(t *Turn) Tags {
	return Tags{
		TagSessionID:    t.ID,
		TagProcessed:    "false",
		TagFeedbackType: string(FeedbackNone),
		TagConfidence:   FormatConfidence(DefaultConfidence),
		TagTimestamp:    FormatTimestamp(t.Timestamp),
	}
}

// FeedbackTags returns the tags that mark a record as reviewed.
func FeedbackTags(kind FeedbackKind, confidence float64) Tags {
	return Tags{
		TagProcessed:    "true",
		TagFeedbackType: string(kind),
		TagConfidence:   FormatConfidence(confidence),
	}
}

// Merge returns a copy of t overlaid with update.
func (t Tags) Merge(update Tags) Tags {
	out := make(Tags, len(t)+len(update))
	maps.Copy(out, t)
	maps.Copy(out, update)
	return out
}

// Processed reports whether feedback has been recorded.
func (t Tags) Processed() bool {
	return t[TagProcessed] == "true"
}
