package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/storefront/internal/logger"
)

var ErrCallbackTimeout = errors.New("no OAuth callback received in time")

const shutdownTimeout = 5 * time.Second

// CallbackServer is a loopback HTTP listener that lives until the first OAuth callback
type CallbackServer struct {
	callback *CallbackHandler
	listener net.Listener
	server   *http.Server
	logger   logger.Logger
}

// ListenCallback binds address right away so the callback URL is known before the browser is sent off.
// Port 0 picks a free port
func ListenCallback(address string, callback *CallbackHandler, l logger.Logger) (*CallbackServer, error) {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for callback on %s: %w", address, err)
	}

	return &CallbackServer{
		callback: callback,
		listener: ln,
		server: &http.Server{
			Handler:           NewRouter(callback, l),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: l.With("component", "callback_server"),
	}, nil
}

// URL the backend has to redirect the browser to
func (s *CallbackServer) URL() string {
	return "http://" + s.listener.Addr().String() + CallbackPath
}

// Wait serves until the first callback is handled, timeout passes or ctx is cancelled.
// The server is shut down gracefully in any case, so the browser gets its redirect
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (CallbackResult, error) {
	var result CallbackResult

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Waiting for OAuth callback", "url", s.URL())
		err := s.server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("callback server failed: %w", err)
	})

	g.Go(func() error {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		var err error
		select {
		case result = <-s.callback.Done():
		case <-timer.C:
			err = ErrCallbackTimeout
		case <-gctx.Done():
			err = gctx.Err()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := s.server.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error("Callback server shutdown failed, forcing close", "error", shutdownErr)
			_ = s.server.Close()
		}

		return err
	})

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}
