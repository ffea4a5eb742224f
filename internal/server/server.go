// Package server exposes content over HTTP with echo. It is a thin adapter:
// schema lookup, request decoding, response shaping, and deciding which
// mutations are worth a change notification.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/lowercasename/eggcms/internal/notify"
	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

const (
	shutdownTimeout = 10 * time.Second
	defaultSiteName = "EggCMS"
)

// Notifier receives change events for significant mutations.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// Server serves the content API.
type Server struct {
	echo     *echo.Echo
	store    types.ContentStore
	media    types.MediaStore
	notifier Notifier
	schemas  []*schema.Definition
	siteName string
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a server over store. media and notifier may be nil.
func New(store types.ContentStore, media types.MediaStore, notifier Notifier, schemas []*schema.Definition, logger zerolog.Logger) *Server {
	s := &Server{
		echo:     echo.New(),
		store:    store,
		media:    media,
		notifier: notifier,
		schemas:  schemas,
		siteName: defaultSiteName,
		log:      logger,
		now:      time.Now,
	}
	s.setupRoutes()
	return s
}

// SetSiteName sets the name reported with the schema list.
func (s *Server) SetSiteName(name string) {
	if name != "" {
		s.siteName = name
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start(addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Int("schemas", len(s.schemas)).Msg("Starting server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		s.log.Error().Err(err).Msg("Server startup failed")
		return err
	case <-quit:
	}
	return s.Shutdown()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown() error {
	s.log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}
	s.log.Info().Msg("Server gracefully stopped")
	return nil
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.httpErrorHandler
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))

	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.GET("/schemas", s.handleSchemas)

	content := api.Group("/content")
	content.GET("/:schema", s.handleList)
	content.POST("/:schema", s.handleCreate)
	content.GET("/:schema/:id", s.handleGet)
	content.PUT("/:schema/:id", s.handleUpdate)
	content.DELETE("/:schema/:id", s.handleDelete)

	api.GET("/media", s.handleMediaList)
	api.GET("/media/:id", s.handleMediaGet)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchemas(c echo.Context) error {
	public := make([]*schema.Definition, 0, len(s.schemas))
	for _, def := range s.schemas {
		if def.Kind != schema.KindBlock {
			public = append(public, def)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": public, "siteName": s.siteName})
}
