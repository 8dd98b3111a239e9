package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/chatrelay/internal/logger"
)

// ConversationCookie names the cookie that ties a browser to its
// conversation history.
const ConversationCookie = "chatrelay_conversation"

// Conversation is middleware that reads the conversation ID from the
// cookie, issuing a fresh one when it is absent or malformed. The ID is
// stored in the request context (see logger.ConversationID).
func Conversation(maxAge time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(ConversationCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				SetConversationCookie(w, id, maxAge, secure)
			}

			ctx := logger.WithConversationID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetConversationCookie writes the conversation cookie. Handlers use it
// to start a new conversation.
func SetConversationCookie(w http.ResponseWriter, id string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ConversationCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
