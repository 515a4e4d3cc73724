package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"courtside/gateway/internal/config"
	gwmw "courtside/gateway/internal/http/middleware"
	"courtside/gateway/internal/location"
	"courtside/gateway/internal/prefs"
	"courtside/gateway/internal/rate"
	"courtside/gateway/internal/session"
	"courtside/gateway/internal/sportsapi"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	api              *sportsapi.Client
	sessions         *session.Manager
	prefs            *prefs.Store
	geoip            *location.IPLocator
	cfg              *config.Config
	logger           *slog.Logger
	validator        *validator.Validate
	joinLeaveLimiter *rate.KeyedLimiter
}

func New(api *sportsapi.Client, sessions *session.Manager, prefStore *prefs.Store, geoip *location.IPLocator, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		api:              api,
		sessions:         sessions,
		prefs:            prefStore,
		geoip:            geoip,
		cfg:              cfg,
		logger:           logger,
		validator:        validator.New(),
		joinLeaveLimiter: rate.NewKeyedLimiter(10, time.Minute),
	}
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 20*time.Second)
}

func (h *Handler) loggerForRequest(r *http.Request) *slog.Logger {
	logger := h.logger
	if logger == nil {
		return slog.Default()
	}
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if sess, ok := gwmw.SessionFromContext(r.Context()); ok {
		logger = logger.With("session_id", sess.ID)
		if user := sess.User(); user != nil {
			logger = logger.With("user_id", user.ID)
		}
	}
	return logger
}

// sessionFor returns the request's session; the session middleware wraps
// every route that reaches a handler.
func (h *Handler) sessionFor(r *http.Request) (*session.Session, bool) {
	return gwmw.SessionFromContext(r.Context())
}
