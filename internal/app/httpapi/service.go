package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/docuindex/engine/internal/app/services/apikeys"
	"github.com/docuindex/engine/internal/app/storage"
	"github.com/docuindex/engine/internal/app/system"
	"github.com/docuindex/engine/infrastructure/logging"
)

var _ system.Service = (*Service)(nil)

// Service exposes the HTTP API and fits into the system manager lifecycle.
type Service struct {
	addr    string
	server  *http.Server
	handler http.Handler
	log     *logging.Logger
}

// Config carries the fields NewService needs beyond the Services bundle.
type Config struct {
	Addr        string
	RequireAuth bool
	DemoMode    bool
	CORSOrigins []string
}

// NewService builds the HTTP server, chaining middleware in the order that
// matters: auth resolves the caller before anything downstream runs,
// demo-mode blocks mutations before they reach a handler, CORS
// short-circuits preflight before auth ever sees it, and the request log
// wraps the whole chain so every response (including CORS preflights) is
// recorded.
func NewService(svc Services, keys *apikeys.Service, users storage.UserStore, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewFromEnv("httpapi")
	}
	handler := NewHandler(svc, logger)
	handler = wrapWithAuth(handler, keys, users, cfg.RequireAuth, logger)
	handler = wrapWithDemoMode(handler, cfg.DemoMode)
	handler = wrapWithCORS(handler, cfg.CORSOrigins)
	handler = wrapWithRequestLog(handler, logger)

	return &Service{addr: cfg.Addr, handler: handler, log: logger}
}

func (s *Service) Name() string { return "http-api" }

func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error(context.Background(), "http server error", err, nil)
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
