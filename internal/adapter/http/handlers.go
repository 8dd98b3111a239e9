package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/logger"
	"github.com/Strob0t/chatrelay/internal/middleware"
	"github.com/Strob0t/chatrelay/internal/service"
)

// Slider defaults of the web UI, also applied when an API client omits them.
const (
	defaultTemperature = 0.7
	defaultTopP        = 0.95
)

// Handlers holds the services behind the HTTP API.
type Handlers struct {
	Chat     *service.ChatService
	Feedback *service.FeedbackService
	History  *service.HistoryStore
	Review   *service.ReviewService

	MaxBodyBytes  int64
	CookieMaxAge  time.Duration
	SecureCookies bool
}

type chatRequest struct {
	Message     string   `json:"message"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
}

// SendChat handles POST /api/v1/chat.
func (h *Handlers) SendChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatRequest](w, r, h.MaxBodyBytes)
	if !ok {
		return
	}

	turnReq := service.TurnRequest{
		Message:     req.Message,
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
	}
	if req.Temperature != nil {
		turnReq.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		turnReq.TopP = *req.TopP
	}

	res, err := h.Chat.SendTurn(r.Context(), logger.ConversationID(r.Context()), turnReq)
	if err != nil {
		writeDomainError(w, r, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type historyResponse struct {
	ConversationID string       `json:"conversation_id"`
	History        turn.History `json:"history"`
}

// GetHistory handles GET /api/v1/history.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	convID := logger.ConversationID(r.Context())
	hist, err := h.History.Load(r.Context(), convID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{ConversationID: convID, History: hist})
}

// ClearHistory handles DELETE /api/v1/history: it drops the transcript
// and starts a new conversation. Logged records are not affected.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.History.Clear(r.Context(), logger.ConversationID(r.Context())); err != nil {
		writeInternalError(w, r, err)
		return
	}
	id := uuid.NewString()
	middleware.SetConversationCookie(w, id, h.CookieMaxAge, h.SecureCookies)
	writeJSON(w, http.StatusOK, historyResponse{ConversationID: id, History: turn.History{}})
}

// RecordFeedback handles POST /api/v1/feedback.
func (h *Handlers) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.FeedbackRequest](w, r, h.MaxBodyBytes)
	if !ok {
		return
	}
	res, err := h.Feedback.Record(r.Context(), logger.ConversationID(r.Context()), req)
	if err != nil {
		writeDomainError(w, r, err, "turn not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetTurn handles GET /api/v1/turns/{id}.
func (h *Handlers) GetTurn(w http.ResponseWriter, r *http.Request) {
	res, err := h.Review.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err, "turn not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health reports dependency status, the generation breaker state and the
// number of connected reviewers.
type Health struct {
	Checks      []HealthCheck
	Breaker     interface{ State() string }
	Connections func() int
	Timeout     time.Duration
}

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
	Breaker      string            `json:"generation_breaker,omitempty"`
	Reviewers    int               `json:"reviewers"`
}

// ServeHTTP handles GET /health. A failing dependency yields 503 with
// status "degraded".
func (hc *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := hc.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Dependencies: make(map[string]string, len(hc.Checks))}
	for _, c := range hc.Checks {
		if err := c.Check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Dependencies[c.Name] = "error: " + firstLine(err.Error())
			continue
		}
		resp.Dependencies[c.Name] = "ok"
	}
	if hc.Breaker != nil {
		resp.Breaker = hc.Breaker.State()
	}
	if hc.Connections != nil {
		resp.Reviewers = hc.Connections()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
