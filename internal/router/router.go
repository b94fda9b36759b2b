package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"mestre7c-backend/internal/handlers"
	"mestre7c-backend/internal/middleware"
	"mestre7c-backend/internal/websocket"
)

// Router is the HTTP surface of the backend. Close releases the rate
// limiters' background sweeps.
type Router struct {
	http.Handler
	limiters []*middleware.RateLimiter
}

func (rt *Router) Close() {
	for _, l := range rt.limiters {
		l.Close()
	}
}

func New(
	log zerolog.Logger,
	jwtAuth *middleware.JWTAuth,
	appHandler *handlers.AppHandler,
	sessionHandler *handlers.SessionHandler,
	credentialHandler *handlers.CredentialHandler,
	conversationHandler *handlers.ConversationHandler,
	speechHandler *handlers.SpeechHandler,
	wsHub *websocket.Hub,
	metricsHandler http.Handler,
	turnsPerMinute int,
	frontendURL string,
) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get(middleware.RequestIDHeader)).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Session creation rate limiter (10 req/min per IP)
	sessionLimiter := middleware.NewRateLimiter(10, time.Minute)
	turnLimiter := middleware.NewRateLimiter(turnsPerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/app", appHandler.Info)

		r.With(sessionLimiter.Middleware).Post("/sessions", sessionHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			// ──── Credential Routes ────
			r.Route("/credential", func(r chi.Router) {
				r.Get("/", credentialHandler.Get)
				r.Put("/", credentialHandler.Link)
				r.Delete("/", credentialHandler.Reset)
			})

			// ──── Conversation Routes ────
			r.Route("/conversation", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Clear)
				r.Delete("/error", conversationHandler.DismissError)
				r.Put("/draft", conversationHandler.SetDraft)
				r.With(turnLimiter.Middleware).Post("/turns", conversationHandler.Submit)
				r.Get("/messages/{id}/copy", conversationHandler.Copy)
				r.Post("/messages/{id}/speak", conversationHandler.Speak)
			})

			// ──── Speech Routes ────
			r.Route("/speech", func(r chi.Router) {
				r.Post("/listen", speechHandler.Listen)
				r.Post("/prepare", speechHandler.Prepare)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return &Router{Handler: r, limiters: []*middleware.RateLimiter{sessionLimiter, turnLimiter}}
}
