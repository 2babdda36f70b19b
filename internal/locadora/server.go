package locadora

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/utils"
)

// Run поднимает демо backend и блокируется до отмены ctx.
//
// Пустая база заполняется демо данными. cfg.Seed == 0 - данные
// каждый раз новые.
func Run(ctx context.Context, cfg config.DemoConfig) error {
	cfg = cfg.GetDefaults()

	store, err := Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if err := store.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           logRequests(NewAPI(store).Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("Demo backend listening", "addr", cfg.Listen, "database", cfg.Database)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	utils.Info("Demo backend shutting down")
	return srv.Shutdown(shutdownCtx)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		utils.Debug("Demo request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
