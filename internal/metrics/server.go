package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes /metrics and /healthz.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger zerolog.Logger
}

// NewServer wires the recorder's registry into an echo instance.
func NewServer(addr, path string, rec *Recorder, logger zerolog.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET(path, echo.WrapHandler(promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{
		echo:   e,
		addr:   addr,
		logger: logger.With().Str("component", "metrics_server").Logger(),
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("metrics server listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
