// Package server wires the application together: storage, services,
// handlers, routes, and the HTTP server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/miicoin/miicoin-server/internal/auth"
	"github.com/miicoin/miicoin-server/internal/config"
	"github.com/miicoin/miicoin-server/internal/crypto"
	"github.com/miicoin/miicoin-server/internal/handler"
	"github.com/miicoin/miicoin-server/internal/middleware"
	"github.com/miicoin/miicoin-server/internal/repository/sqlite"
	"github.com/miicoin/miicoin-server/internal/service"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router chi.Router
	db     *sqlite.DB
}

// New builds a fully wired server from configuration. It opens (and
// migrates) the database, so a bad database path or encryption key fails
// here, before the listener starts.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	key, err := cfg.EncryptionKey()
	if err != nil {
		db.Close()
		return nil, err
	}
	cipher, err := crypto.New(key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: building cipher: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("server: building token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var google *auth.GoogleProvider
	if cfg.GoogleOAuthConfigured() {
		google = auth.NewGoogleProvider(
			cfg.Auth.GoogleClientID,
			cfg.Auth.GoogleClientSecret,
			cfg.Auth.GoogleCallbackURL,
		)
	} else {
		logger.Warn("google oauth not configured, /auth/google routes disabled")
	}

	authSvc := service.NewAuthService(sqlite.NewUserRepo(db), tokens, passwords, logger)
	keySvc := service.NewAPIKeyService(sqlite.NewAPIKeyRepo(db), cipher, cfg.Exchanges.Supported, logger)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	s.router = s.routes(
		handler.NewStatusHandler(),
		handler.NewAuthHandler(authSvc, google, logger),
		handler.NewAPIKeyHandler(keySvc, logger),
		tokens,
		google != nil,
	)

	return s, nil
}

func (s *Server) routes(
	status *handler.StatusHandler,
	authH *handler.AuthHandler,
	keys *handler.APIKeyHandler,
	tokens *auth.TokenService,
	googleEnabled bool,
) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/", status.HandleIndex)
	r.Get("/dashboard", status.HandleDashboard)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authH.HandleRegister)
		r.Get("/login", authH.HandleLoginPage)
		r.Post("/login", authH.HandleLogin)
		r.Get("/logout", authH.HandleLogout)

		if googleEnabled {
			r.Get("/login/google", authH.HandleGoogleLogin)
			r.Get("/login/google/callback", authH.HandleGoogleCallback)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/profile", authH.HandleProfile)
			r.Put("/profile/update", authH.HandleUpdateProfile)
		})
	})

	r.Route("/api-keys", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Post("/", keys.HandleAdd)
		r.Get("/", keys.HandleList)
		r.Delete("/{id}", keys.HandleDelete)
		r.Post("/{id}/toggle", keys.HandleToggle)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/signals", status.HandleSignals)
		r.Get("/bot/status", status.HandleBotStatus)
	})

	return r
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP until SIGINT/SIGTERM, then drains in-flight requests
// before returning.
func (s *Server) Start() error {
	defer s.db.Close()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-stop:
		s.logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
