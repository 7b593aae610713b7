package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/listafacil/apiserver/config"
	"github.com/listafacil/apiserver/internal/db"
	"github.com/listafacil/apiserver/internal/handlers"
	"github.com/listafacil/apiserver/internal/mq"
	"github.com/listafacil/apiserver/internal/services"
	"github.com/listafacil/apiserver/internal/storage"
	"github.com/listafacil/apiserver/internal/store"
	"github.com/rs/zerolog"
)

const (
	globalRateLimit  = 100
	globalRateWindow = 15 * time.Minute
	submitRateLimit  = 5
	submitRateWindow = time.Minute
	requestTimeout   = 60 * time.Second
)

// Server wraps the HTTP server, router, and shared clients.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mqBus      *mq.MQ
	log        zerolog.Logger
}

// New constructs a fully wired Server. Optional backends (notification
// broker, report storage) are only connected when configured.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	mqBus, err := mq.New(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("connect mq: %w", err)
	}

	objectStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("connect storage: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	eventRepo := store.NewEventRepository(dbConn)
	registrantRepo := store.NewRegistrantRepository(dbConn)

	var notifier services.Publisher
	if mqBus != nil {
		notifier = mqBus
		log.Info().Str("driver", cfg.MQ.Driver).Msg("notification broker connected")
	}
	var reportStore services.ObjectStore
	if objectStorage != nil {
		reportStore = objectStorage
		log.Info().Str("driver", cfg.Storage.Driver).Str("bucket", objectStorage.Bucket()).Msg("report storage connected")
	}

	userService := services.NewUserService(userRepo)
	eventService := services.NewEventService(eventRepo)
	registrantService := services.NewRegistrantService(registrantRepo, eventRepo, notifier, log)
	reportService := services.NewReportService(eventRepo, registrantRepo, reportStore)

	authMiddleware := handlers.Authenticate(userService, cfg.JWTSecret)
	submitLimit := httprate.LimitByIP(submitRateLimit, submitRateWindow)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.CORSOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}),
		httprate.LimitByIP(globalRateLimit, globalRateWindow),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.JWTSecret, authMiddleware)
	})
	router.Route("/events", func(r chi.Router) {
		handlers.EventRouter(r, eventService, reportService, authMiddleware)
	})
	router.Route("/name-lists", func(r chi.Router) {
		handlers.NameListRouter(r, registrantService, authMiddleware, submitLimit)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mqBus:      mqBus,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting server")
	return s.httpServer.ListenAndServe()
}

// Shutdown closes the server and its clients.
func (s *Server) Shutdown() error {
	if s.mqBus != nil {
		_ = s.mqBus.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
