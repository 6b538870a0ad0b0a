// Package api exposes the chat pipeline and the knowledge store over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"purpuria-agent/internal/api/wire"
	"purpuria-agent/internal/domain"
	"purpuria-agent/internal/repository"
	"purpuria-agent/internal/usecase"
)

// ChatUseCase is the pipeline as seen by the transport.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, userID, conversationID string) ([]domain.Turn, error)
}

// KnowledgeAdmin manages the FAQ knowledge entries.
type KnowledgeAdmin interface {
	Add(ctx context.Context, text string) (string, error)
	List(ctx context.Context) ([]repository.KnowledgeEntry, error)
	Clear(ctx context.Context) (int, error)
}

type Options struct {
	Port int
	// RateLimit is the per-client request rate in requests per second; 0
	// disables limiting.
	RateLimit float64
}

type Server struct {
	echo      *echo.Echo
	port      int
	chat      ChatUseCase
	knowledge KnowledgeAdmin
	now       func() time.Time
}

func NewServer(chat ChatUseCase, knowledge KnowledgeAdmin, opts Options) (*Server, error) {
	if chat == nil {
		return nil, errors.New("api: chat use case must not be nil")
	}
	if knowledge == nil {
		return nil, errors.New("api: knowledge admin must not be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(contextLogger)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	if opts.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(opts.RateLimit)),
			DenyHandler: func(c echo.Context, _ string, _ error) error {
				return c.JSON(http.StatusTooManyRequests, wire.ErrorResponse{Error: "RATE_LIMITED"})
			},
		}))
	}

	s := &Server{
		echo:      e,
		port:      opts.Port,
		chat:      chat,
		knowledge: knowledge,
		now:       time.Now,
	}
	s.routes()
	return s, nil
}

// contextLogger stores a logger tagged with the request id in the request
// context so pipeline log lines can be correlated with the access log.
func contextLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		logger := log.With().Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).Logger()
		c.SetRequest(req.WithContext(logger.WithContext(req.Context())))
		return next(c)
	}
}

func (s *Server) routes() {
	s.echo.GET("/alive", s.alive)
	s.echo.POST("/chat/:conversationId", s.postMessage)
	s.echo.GET("/chat", s.getHistory)
	s.echo.POST("/embed", s.addEmbedding)
	s.echo.GET("/embed", s.listEmbeddings)
	s.echo.DELETE("/embed", s.clearEmbeddings)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("http server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Msg("http server shutting down")
	return s.echo.Shutdown(shutdownCtx)
}
