// Package server exposes the page context handler over HTTP so a popup in
// another process can reach it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"pdf-qa/internal/messaging"
	"pdf-qa/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// New builds the echo instance serving h.
func New(h *messaging.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	e.POST(messaging.MessagesPath, messagesHandler(h))
	return e
}

func messagesHandler(h *messaging.Handler) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		out, err := h.ServeMessage(c.Request().Context(), raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSONBlob(http.StatusOK, out)
	}
}

func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	log.Warn().Err(err).Int("status", code).Str("method", req.Method).Str("path", req.URL.Path).Msg("Request failed")
	if !c.Response().Committed {
		_ = c.JSON(code, messaging.ErrorResponse{Success: false, Error: msg})
	}
}

// Run serves h on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, h *messaging.Handler) error {
	e := New(h)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving page context")
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		log.Info().Msg("Server stopped")
		return nil
	}
}
