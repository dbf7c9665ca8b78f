// Package web provides the HTTP server and handlers for the portfolio site.
package web

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dtommyhil/tommyhil-portfolio/internal/config"
	"github.com/dtommyhil/tommyhil-portfolio/internal/db"
	"github.com/dtommyhil/tommyhil-portfolio/internal/spotify"
)

// askRatePerMinute caps question submissions per client address. Best
// effort and process-local; a miscount only makes the limit slightly too
// strict or too permissive.
const askRatePerMinute = 5

// ServerConfig holds server configuration.
type ServerConfig struct {
	Config      *config.Config
	Database    *db.DB // nil disables the Q&A endpoints
	Notifier    QuestionNotifier
	Logger      *log.Logger
	TemplatesFS fs.FS
	StaticFS    fs.FS
}

// Server is the HTTP server for the portfolio site.
type Server struct {
	router    chi.Router
	server    *http.Server
	templates *Templates
	handlers  *Handlers
	logger    *log.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	exchanger := spotify.NewExchanger(
		cfg.Config.SpotifyClientID,
		cfg.Config.SpotifyClientSecret,
		cfg.Config.SpotifyRefreshToken,
	)

	flow := spotify.NewFlow(
		cfg.Config.SpotifyClientID,
		cfg.Config.SpotifyClientSecret,
		cfg.Config.SpotifyRedirectBase,
	)

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	handlers := NewHandlers(HandlersConfig{
		Config:    cfg.Config,
		Flow:      flow,
		Tracks:    spotify.NewClient(exchanger),
		Database:  cfg.Database,
		Notifier:  cfg.Notifier,
		Templates: templates,
		Logger:    cfg.Logger,
	})

	router := chi.NewRouter()

	s := &Server{
		router:    router,
		templates: templates,
		handlers:  handlers,
		logger:    cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Config.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	// Static files
	fileServer := http.FileServer(http.FS(staticFS))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// Pages
	s.router.Get("/", s.handlers.Home)
	s.router.Get("/about", s.handlers.About)
	s.router.Get("/contact", s.handlers.Contact)

	// Spotify widget API
	s.router.Get("/authorize", s.handlers.Authorize)
	s.router.Get("/callback", s.handlers.Callback)
	s.router.Get("/tracks", s.handlers.Tracks)
	s.router.Get("/health", s.handlers.Health)

	// Q&A submission, rate limited per client address
	askLimiter := newRateLimiter(askRatePerMinute)
	s.router.With(askLimiter.middleware).Post("/ask", s.handlers.Ask)

	// Admin subtree, gated by HTTP Basic auth
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(basicAuth(s.handlers.cfg.AdminUser, s.handlers.cfg.AdminPass))
		r.Get("/", s.handlers.Admin)
		r.Post("/reply", s.handlers.Reply)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
