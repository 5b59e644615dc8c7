// Package ui provides the HTTP server for lumen: a JSON API over stored
// cells and streamed question answering.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/suggest"
	"github.com/leapstack-labs/lumen/internal/ui/features/ask"
	"github.com/leapstack-labs/lumen/internal/ui/features/cells"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
	"github.com/leapstack-labs/lumen/internal/ui/router"
)

// docsDebounce coalesces the bursts of events editors produce on save.
const docsDebounce = 200 * time.Millisecond

// Server is the lumen HTTP server.
type Server struct {
	cfg          Config
	sessionStore *sessions.CookieStore
	notifier     *notifier.Notifier
	logger       *slog.Logger
	handler      http.Handler
}

// Config holds configuration for the server.
type Config struct {
	Pipeline ask.Pipeline
	Store    cells.Store
	Schema   schema.Provider
	Suggest  *suggest.Service
	Model    string

	Port          int
	Watch         bool
	DocsPath      string
	SessionSecret string
	Logger        *slog.Logger
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:          cfg,
		sessionStore: sessionStore,
		notifier:     notifier.New(),
		logger:       logger,
	}

	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
	)
	router.SetupRoutes(r, router.Deps{
		Pipeline:     cfg.Pipeline,
		Store:        cfg.Store,
		Schema:       cfg.Schema,
		Suggest:      cfg.Suggest,
		Model:        cfg.Model,
		SessionStore: sessionStore,
		Notifier:     s.notifier,
		Logger:       logger,
	})
	s.handler = r

	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting server", slog.String("addr", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch && s.cfg.DocsPath != "" {
		eg.Go(func() error {
			return s.watchDocs(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchDocs refreshes the schema whenever the docs file changes. The
// parent directory is watched so that editors replacing the file on save
// are still seen.
func (s *Server) watchDocs(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.cfg.DocsPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		s.logger.Error("failed to watch docs file", slog.String("path", target), slog.String("error", err.Error()))
		// Don't fail - continue without watching
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(docsDebounce, func() {
				s.refreshSchema(ctx, event.Name)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// refreshSchema rebuilds the schema context and tells clients to re-fetch.
func (s *Server) refreshSchema(ctx context.Context, changed string) {
	s.logger.Info("docs changed, refreshing schema", slog.String("file", changed))
	res := s.cfg.Schema.Refresh(ctx)
	if !res.OK() {
		s.logger.Error("schema refresh failed", slog.Any("diagnostics", res.Diagnostics))
		return
	}
	s.notifier.Publish(notifier.TopicSchema)
}
