package turn

// Exchange is one entry of a conversation transcript. TurnID links the
// entry back to its log record so feedback can find it.
type Exchange struct {
	TurnID   string       `json:"turn_id"`
	Prompt   string       `json:"prompt"`
	Response string       `json:"response"`
	Feedback FeedbackKind `json:"feedback"`
	Failed   bool         `json:"failed,omitempty"`
}

// History is the ordered transcript of a conversation.
type History []Exchange

// Append returns h with the turn added as a new exchange.
func (h History) Append(t *Turn) History {
	return append(h, Exchange{
		TurnID:   t.ID,
		Prompt:   t.Prompt,
		Response: t.Response,
		Feedback: t.FeedbackType,
		Failed:   t.GenerationFailed,
	})
}

// Last returns the most recent exchange.
func (h History) Last() (Exchange, bool) {
	if len(h) == 0 {
		return Exchange{}, false
	}
	return h[len(h)-1], true
}

// Find returns the index of the exchange with the given turn ID, or -1.
func (h History) Find(turnID string) int {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].TurnID == turnID {
			return i
		}
	}
	return -1
}

// WithFeedback returns a copy of h with the feedback of turnID set.
// The second result is false when turnID is not in h.
func (h History) WithFeedback(turnID string, kind FeedbackKind) (History, bool) {
	i := h.Find(turnID)
	if i < 0 {
		return h, false
	}
	out := make(History, len(h))
	copy(out, h)
	out[i].Feedback = kind
	return out, true
}
