package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	shutdownTimeout          = 5 * time.Second
	readHeaderTimeout        = 10 * time.Second
	errMessageListenAndServe = "listen and serve"
	logMessageStartingServer = "starting status server"
	logMessageServerStopped  = "status server stopped"
	logFieldAddress          = "address"
)

// Serve runs the handler on address until the context is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, address string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpServer := &http.Server{Addr: address, Handler: handler, ReadHeaderTimeout: readHeaderTimeout}

	serveResult := make(chan error, 1)
	go func() {
		logger.Info(logMessageStartingServer, zap.String(logFieldAddress, address))
		serveResult <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveResult:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", errMessageListenAndServe, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownContext); err != nil {
		return err
	}
	logger.Info(logMessageServerStopped)
	return nil
}
