package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/campusfind/apiserver/config"
	"github.com/campusfind/apiserver/internal/auth"
	"github.com/campusfind/apiserver/internal/db"
	"github.com/campusfind/apiserver/internal/handlers"
	"github.com/campusfind/apiserver/internal/mq"
	"github.com/campusfind/apiserver/internal/notify"
	"github.com/campusfind/apiserver/internal/services"
	"github.com/campusfind/apiserver/internal/storage"
	"github.com/campusfind/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and its external connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New constructs a Server with its full dependency graph: database, object
// storage, message queue, repositories, services, and routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	images, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := images.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	itemRepo := store.NewItemRepository(dbConn)

	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TokenTTL)
	verifier := auth.NewGoogleVerifier(cfg.Google.ClientID)

	userService := services.NewUserService(userRepo, verifier)
	itemService := services.NewItemService(itemRepo)
	claimService := services.NewClaimService(itemRepo, userRepo, notify.NewQueuePublisher(queue), logger)

	authHandler := handlers.NewAuthHandler(userService, tokens, cfg.JWT.SecureCookie, logger)
	itemHandler := handlers.NewItemHandler(itemService, claimService, images, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/items", func(r chi.Router) {
		handlers.ItemRouter(r, itemHandler, authHandler.RequireSession)
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
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown closes the server and its connections.
func (s *Server) Shutdown() error {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
