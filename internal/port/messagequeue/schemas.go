package messagequeue

// TurnLoggedPayload is the schema for turns.logged messages.
type TurnLoggedPayload struct {
	TurnID           string `json:"turn_id"`
	ConversationID   string `json:"conversation_id"`
	Key              string `json:"key"`
	GenerationFailed bool   `json:"generation_failed"`
	Timestamp        string `json:"timestamp"`
}

// TurnFeedbackPayload is the schema for turns.feedback messages.
type TurnFeedbackPayload struct {
	TurnID         string `json:"turn_id"`
	ConversationID string `json:"conversation_id"`
	FeedbackType   string `json:"feedback_type"`
	Confidence     string `json:"confidence"`
}

// TurnFailedPayload is the schema for turns.failed messages.
type TurnFailedPayload struct {
	TurnID         string `json:"turn_id"`
	ConversationID string `json:"conversation_id"`
	Error          string `json:"error"`
}
