package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtside/gateway/internal/config"
	"courtside/gateway/internal/events"
	"courtside/gateway/internal/http/handlers"
	"courtside/gateway/internal/http/middleware"
	"courtside/gateway/internal/location"
	"courtside/gateway/internal/logging"
	"courtside/gateway/internal/prefs"
	"courtside/gateway/internal/session"
	"courtside/gateway/internal/sportsapi"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	logger = logger.With("service", "gateway")
	slog.SetDefault(logger)

	api := sportsapi.NewClient(sportsapi.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	}, nil, logger)

	sessions := session.NewManager(func() *events.Store {
		return events.NewStore(api)
	}, cfg.SessionTTL)

	var prefStore *prefs.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("redis error", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis error", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = rdb.Close()
		}()
		prefStore = prefs.New(rdb, 0)
	}

	geoip := location.NewIPLocator(location.Config{Endpoint: cfg.GeoIPEndpoint})

	h := handlers.New(api, sessions, prefStore, geoip, cfg, logger)
	secure := cfg.Env == "production"

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions, cfg.SessionSecret, secure))

		r.Get("/events", h.ListEvents)
		r.Post("/events", h.CreateEvent)
		r.Post("/events/filters", h.ApplyFilters)
		r.Post("/events/clear", h.ClearFilters)
		r.Post("/events/more", h.LoadMore)
		r.Post("/events/location", h.RequestLocation)
		r.Get("/events/categories", h.ListCategories)
		r.Get("/events/{id}", h.GetEvent)
		r.Post("/events/{id}/join", h.JoinEvent)
		r.Post("/events/{id}/leave", h.LeaveEvent)
		r.Post("/events/{id}/participation", h.SetParticipation)

		r.Get("/users/{id}", h.GetUser)

		r.Post("/auth/login", h.Login)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.Me)

		r.Get("/prefs/theme", h.GetTheme)
		r.Put("/prefs/theme", h.SetTheme)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.Info("gateway_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown", "service", "gateway")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
