package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wufe/catears-dashboard/internal/api"
	"github.com/wufe/catears-dashboard/internal/auth"
	"github.com/wufe/catears-dashboard/internal/blob"
)

const shutdownTimeout = 5 * time.Second

// OpenBlobStore opens the configured backend.
func OpenBlobStore(ctx context.Context, configuration ServerConfiguration) (blob.Store, error) {
	store, err := blob.Open(ctx, blob.Config{
		Backend:     configuration.Backend,
		Bucket:      configuration.Bucket,
		Credentials: configuration.GCSCredentials,
		Dir:         configuration.Dir,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening blob store: %w", err)
	}
	return store, nil
}

// NewAPIHandler wires the blob store, its read cache (unless the TTL is
// zero) and the auth gate into the API handler. A gate that cannot be
// built is logged and left nil so the read path keeps working.
func NewAPIHandler(store blob.Store, configuration ServerConfiguration, logger zerolog.Logger) http.Handler {
	if ttl := configuration.CacheTTL.Duration; ttl > 0 {
		store = blob.NewCached(store, blob.WithTTL(ttl))
	}

	gate, err := auth.NewGate(auth.GateConfig{
		Secret:       configuration.SessionSecret,
		PasswordHash: configuration.PasswordHash,
		Username:     configuration.Username,
		SecureCookie: configuration.SecureCookie,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Auth gate disabled: login and state writes will answer 500")
		gate = nil
	}

	bucket := configuration.Bucket
	if configuration.Backend != blob.BackendGCS {
		bucket = string(configuration.Backend)
	}

	return api.NewHandler(api.Config{
		Store:        store,
		Gate:         gate,
		Bucket:       bucket,
		Key:          configuration.Key,
		SecureCookie: configuration.SecureCookie,
		Logger:       logger,
	})
}

// StartHTTPServer serves the API until ctx is cancelled, then shuts the
// server down gracefully.
func StartHTTPServer(ctx context.Context, configuration ServerConfiguration, logger zerolog.Logger) error {
	store, err := OpenBlobStore(ctx, configuration)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn().Err(err).Msg("Closing blob store")
			}
		}()
	}
	handler := NewAPIHandler(store, configuration, logger)

	server := &http.Server{
		Addr:              configuration.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("listen", configuration.Listen).
			Str("backend", string(configuration.Backend)).
			Str("key", configuration.Key).
			Msg("Serving catears API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("Shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
