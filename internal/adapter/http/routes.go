package http

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Version is reported by GET /api/v1/.
const Version = "0.1.0"

//go:embed web
var webFS embed.FS

// RouteOptions carries the per-route middleware chosen at startup. Nil
// entries are skipped.
type RouteOptions struct {
	Conversation func(http.Handler) http.Handler
	RateLimit    func(http.Handler) http.Handler
	Idempotency  func(http.Handler) http.Handler
	Health       http.Handler
}

// MountRoutes registers the web UI, the JSON API and the health endpoint.
// The reviewer websocket is mounted by the caller so it stays outside any
// request timeout.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	if opts.Health != nil {
		r.Method(http.MethodGet, "/health", opts.Health)
	}

	static, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err) // embedded directory is fixed at build time
	}

	r.Group(func(r chi.Router) {
		use(r, opts.Conversation)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFileFS(w, r, static, "index.html")
		})
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"version": Version})
			})

			r.Get("/history", h.GetHistory)
			r.Delete("/history", h.ClearHistory)
			r.Get("/turns/{id}", h.GetTurn)

			r.Group(func(r chi.Router) {
				use(r, opts.Idempotency)
				r.With(middlewares(opts.RateLimit)...).Post("/chat", h.SendChat)
				r.Post("/feedback", h.RecordFeedback)
			})
		})
	})
}

func use(r chi.Router, mw func(http.Handler) http.Handler) {
	if mw != nil {
		r.Use(mw)
	}
}

func middlewares(mw ...func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, 0, len(mw))
	for _, m := range mw {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
