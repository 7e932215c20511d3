package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/EduMate/internal/assistant"
	"github.com/MikeSquared-Agency/EduMate/internal/auth"
	"github.com/MikeSquared-Agency/EduMate/internal/hermes"
	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

// Services are the dependencies shared by all handlers. Hermes, Metrics,
// Chat and Reminders may be nil.
type Services struct {
	Store     store.Store
	Tokens    *auth.TokenManager
	Engine    *scoring.Engine
	Chat      *assistant.Chat
	Reminders *assistant.Reminders
	Hermes    hermes.Client
	Metrics   *Metrics
	Clock     scoring.Clock
}

type RouterConfig struct {
	FrontendURL  string
	RateLimit    int
	RateWindow   time.Duration
	BcryptCost   int
	FocusCompact int
	FocusFull    int
}

func NewRouter(svc Services, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if svc.Clock == nil {
		svc.Clock = scoring.SystemClock{}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 15 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.FrontendURL))
	r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.RateWindow))
	r.Use(RequestLogger(logger))
	r.Use(MetricsMiddleware(svc.Metrics))

	authH := NewAuthHandler(svc.Store, svc.Tokens, svc.Hermes, cfg.BcryptCost, svc.Clock, logger)
	subjects := NewSubjectsHandler(svc.Store, svc.Hermes, svc.Reminders, svc.Clock, logger)
	assignments := NewAssignmentsHandler(svc.Store, svc.Hermes, svc.Reminders, svc.Clock, logger)
	dashboard := NewDashboardHandler(svc.Store, svc.Clock, logger)
	priority := NewPriorityHandler(svc.Store, svc.Engine, cfg.FocusCompact, cfg.FocusFull, logger)
	chat := NewChatHandler(svc.Chat, svc.Metrics, logger)
	reminders := NewRemindersHandler(svc.Store, svc.Reminders, logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "EduMate API", "version": "1.0.0"})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "message": "EduMate API is running"})
		})

		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Tokens, svc.Store, logger))

			r.Get("/auth/me", authH.Me)

			r.Get("/subjects", subjects.List)
			r.Post("/subjects", subjects.Create)
			r.Put("/subjects/{id}", subjects.Update)
			r.Delete("/subjects/{id}", subjects.Delete)

			r.Get("/assignments", assignments.List)
			r.Post("/assignments", assignments.Create)
			r.Put("/assignments/{id}", assignments.Update)
			r.Delete("/assignments/{id}", assignments.Delete)
			r.Post("/assignments/{id}/complete", assignments.Complete)

			r.Get("/dashboard/stats", dashboard.Stats)

			r.Get("/priority/ranked", priority.Ranked)
			r.Get("/priority/focus", priority.Focus)
			r.Get("/priority/next", priority.Next)
			r.Get("/priority/assignments/{id}", priority.Explain)
			r.Get("/priority/export", priority.Export)

			r.Post("/chat/simple", chat.Simple)
			r.Get("/reminders/smart", reminders.Smart)
		})
	})

	return r
}
