package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/broker"
	"sport-events-backend/internal/cache"
	"sport-events-backend/internal/config"
	"sport-events-backend/internal/database"
	"sport-events-backend/internal/handlers"
	"sport-events-backend/internal/middleware"
	"sport-events-backend/internal/repository"
	"sport-events-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	if err := cfg.Auth.Validate(); err != nil {
		log.Warn().Err(err).Msg("Auth is not configured, sign-in will fail")
	}

	// Connect to database
	db, err := database.Connect(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := database.Migrate(cfg.Database.DSN()); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// View cache and event publisher are optional
	rdb := cache.NewRedisClient(cfg.Cache)
	if rdb != nil {
		defer rdb.Close()
	}
	viewCache := cache.NewViewCache(rdb, cfg.Cache)

	var publisher services.Publisher
	if cfg.Broker.URL != "" {
		p, err := broker.NewPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to broker, domain events disabled")
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	rsvpRepo := repository.NewRSVPRepository(db)

	// Initialize services
	authClient := authclient.New(cfg.Auth.URL, cfg.Auth.AnonKey, cfg.Auth.SecureCookies())
	authService := services.NewAuthService(authClient, cfg.Auth)
	eventService := services.NewEventService(eventRepo, rsvpRepo, viewCache, publisher)
	rsvpService := services.NewRSVPService(rsvpRepo, viewCache, publisher)

	// Initialize handlers
	templates, err := handlers.LoadTemplates()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load templates")
	}
	authHandler := handlers.NewAuthHandler(authService)
	pageHandler := handlers.NewPageHandler(eventService, rsvpService, templates)
	apiHandler := handlers.NewAPIHandler(eventService, rsvpService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Edge)

	r.Get("/healthz", handlers.Health)

	// Auth routes
	r.Route("/auth", func(r chi.Router) {
		r.Get("/signin", authHandler.SignIn)
		r.Get("/callback", authHandler.Callback)
		r.Get("/signout", authHandler.SignOut)
		r.Post("/signout", authHandler.SignOut)
	})

	// Pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(authService))

		r.Get("/", pageHandler.Home)
		r.Get("/events/{id}", pageHandler.ShowEvent)
		r.Post("/events/{id}/rsvp", pageHandler.AddRSVP)
		r.Post("/events/{id}/rsvp/delete", pageHandler.RemoveRSVP)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)
			r.Get("/events", pageHandler.ListEvents)
			r.Get("/events/new", pageHandler.NewEvent)
			r.Post("/events/new", pageHandler.CreateEvent)
			r.Get("/events/{id}/edit", pageHandler.EditEvent)
			r.Post("/events/{id}/edit", pageHandler.UpdateEvent)
			r.Post("/events/{id}/delete", pageHandler.DeleteEvent)
		})
	})

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Use(middleware.Session(authService))

		r.Get("/events", apiHandler.ListEvents)
		r.Get("/events/trending", apiHandler.TrendingEvents)
		r.Get("/events/{id}", apiHandler.GetEvent)
		r.Get("/events/{id}/rsvps", apiHandler.GetRSVPs)

		r.With(middleware.RequireSession).Get("/me", apiHandler.Me)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS for the read-only API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
