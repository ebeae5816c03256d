// Package httpapi exposes the REST and WebSocket surface of the server.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/verte-zerg/swifttype/internal/auth"
	"github.com/verte-zerg/swifttype/internal/leaderboard"
	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/stats"
)

// AccountService covers registration and login.
type AccountService interface {
	Authenticator
	Register(ctx context.Context, req auth.RegisterRequest) (auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.Session, error)
}

// LeaderboardService covers ranking queries and submissions.
type LeaderboardService interface {
	TopScores(ctx context.Context, duration, limit int) ([]model.LeaderboardEntry, error)
	PersonalBest(ctx context.Context, userID string, durations []int) (map[int]*model.LeaderboardEntry, error)
	Submit(ctx context.Context, userID string, req leaderboard.SubmitRequest) (model.Score, error)
}

// TextSource hands out reference passages.
type TextSource interface {
	Random() model.Text
}

// Pinger checks storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the router's collaborators. Metrics, WebSocket and Health are optional.
type Config struct {
	Logger         *slog.Logger
	Accounts       AccountService
	Leaderboard    LeaderboardService
	History        stats.HistorySource
	Texts          TextSource
	Health         Pinger
	WebSocket      http.Handler
	Metrics        http.Handler
	Observer       RequestObserver
	AllowedOrigins []string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	RateBurst int
}

type api struct {
	logger      *slog.Logger
	accounts    AccountService
	leaderboard LeaderboardService
	history     stats.HistorySource
	texts       TextSource
	health      Pinger
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &api{
		logger:      logger,
		accounts:    cfg.Accounts,
		leaderboard: cfg.Leaderboard,
		history:     cfg.History,
		texts:       cfg.Texts,
		health:      cfg.Health,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger, cfg.Observer))
	r.Use(cors(cfg.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			burst := cfg.RateBurst
			if burst <= 0 {
				burst = 1
			}
			r.Use(rateLimit(NewIPRateLimiter(rate.Limit(cfg.RateLimit), burst)))
		}
		authed := requireAuth(cfg.Accounts, logger)

		r.Get("/health", a.handleHealth)
		r.Get("/text", a.handleText)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.With(authed).Get("/me", a.handleMe)
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/top/{duration}", a.handleTop)
			r.With(authed).Get("/personal-best", a.handlePersonalBest)
			r.With(authed).Post("/scores", a.handleSubmit("Score recorded successfully"))
		})

		r.Route("/scores", func(r chi.Router) {
			r.Use(authed)
			r.Post("/", a.handleSubmit("Score added successfully"))
			r.Get("/", a.handleListScores)
		})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.WebSocket != nil {
		r.Method(http.MethodGet, "/ws", cfg.WebSocket)
	}
	return r
}
