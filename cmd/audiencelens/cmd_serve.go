package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"audiencelens/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP retrieval surface (§6 endpoints)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		svc := buildService(cfg)

		if cfg.Catalog.WatchForChanges {
			// The watcher only logs that a reload is available; it never
			// calls Reload itself (real-time index updates are a non-goal).
			if err := svc.Catalog().WatchForChanges(nil); err != nil {
				logger.Sugar().Warnf("could not start catalog watcher: %v", err)
			}
		}

		router := httpapi.NewRouter(svc, cfg.HTTP, logger)
		srv := &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      router.Setup(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Sugar().Infof("audiencelens listening on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(ctx)
	},
}
