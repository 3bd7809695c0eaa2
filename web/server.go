// ABOUTME: HTTP API server for triggering syncs and reading contacts
// ABOUTME: Echo routes with header-based caller identity, Prometheus metrics and health checks
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service is the sync engine surface the API exposes.
type Service interface {
	RunSync(ctx context.Context, req sync.SyncRequest) (*sync.SyncSummary, error)
	CellContacts(ctx context.Context, userID, orgID, cellID string) ([]models.ContactView, error)
	Integrations(ctx context.Context, userID, orgID string) ([]models.Integration, error)
	LinkIntegration(ctx context.Context, req sync.LinkRequest) (*models.Integration, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo    *echo.Echo
	db      Pinger
	service Service
	logger  *zap.Logger
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(database Pinger, service Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = ErrorHandler(logger)

	s := &Server{echo: e, db: database, service: service, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api", identity)
	api.POST("/cells/:cellId/crm/:crm/sync", s.handleCellSync)
	api.POST("/crm/:crm/sync", s.handleAccountSync)
	api.GET("/cells/:cellId/contacts", s.handleCellContacts)
	api.GET("/integrations", s.handleListIntegrations)
	api.POST("/integrations", s.handleLinkIntegration)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.db.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
