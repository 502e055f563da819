package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"flow-trainer/api/rest/routes"
	"flow-trainer/core/repository"
	"flow-trainer/logging"
)

const shutdownTimeout = 10 * time.Second

var servePort string

// ServeCmd starts the HTTP registry server.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run registry over HTTP",
	Long: `Serve the run registry over HTTP. Requires FLOWTRAIN_DATABASE_URL.

Endpoints:
  GET /v1/runs                   list runs (?status=, ?limit=)
  GET /v1/runs/{id}              run details
  GET /v1/runs/{id}/epochs       per-epoch losses
  GET /v1/runs/{id}/artifacts    checkpoints, summaries and datasets (?type=)
  GET /v1/dashboard/summary      run counts by status
  GET /metrics                   Prometheus metrics
  GET /health                    liveness`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		if !cfg.RegistryEnabled() {
			return errors.New("serve requires a database url (FLOWTRAIN_DATABASE_URL)")
		}
		port := cfg.ServerPort
		if servePort != "" {
			port = servePort
		}

		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		logging.Info("Database connected successfully", logging.Server)

		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}

		r := mux.NewRouter()
		routes.SetupRoutes(r, db)

		server := &http.Server{
			Addr:              ":" + port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return Serve(cmd.Context(), server)
	},
}

func init() {
	ServeCmd.Flags().StringVar(&servePort, "port", "", "Listen port (overrides FLOWTRAIN_SERVER_PORT)")
}

// Serve runs server until ctx is cancelled, then shuts it down gracefully
func Serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("Starting server", logging.Server, "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down server", logging.Server)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logging.Info("Server exited", logging.Server)
	return nil
}
