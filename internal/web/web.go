// Package web serves the keep-alive endpoint and optionally pings the
// bot's own public URL so free hosting platforms do not idle the process.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"multichat/bot/internal/config"
)

type Server struct {
	config *config.Config
	echo   *echo.Echo
	client *resty.Client
}

func NewServer(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true

	s := &Server{
		config: cfg,
		echo:   e,
		client: resty.New().SetTimeout(10 * time.Second),
	}

	e.GET("/", s.handleIndex)
	e.GET("/healthz", s.handleHealthz)
	return s
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTML(http.StatusOK, "<html><body><h1>Multichat bot is running</h1></body></html>")
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.config.HTTPListen)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// RunPinger periodically requests KeepAliveURL until ctx is cancelled.
// A no-op when the URL is not configured.
func (s *Server) RunPinger(ctx context.Context) {
	if s.config.KeepAliveURL == "" {
		return
	}

	t := time.NewTicker(s.config.KeepAliveInterval)
	defer t.Stop()

	logger := logrus.WithField("component", "keep_alive_pinger")

	for {
		select {
		case <-t.C:
			resp, err := s.client.R().SetContext(ctx).Get(s.config.KeepAliveURL)
			if err != nil {
				logger.Warnf("keep-alive ping failed: %v", err)
				continue
			}
			logger.Debugf("keep-alive ping: %s", resp.Status())
		case <-ctx.Done():
			return
		}
	}
}
