package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kabupicks/internal/api"
	"github.com/wonny/kabupicks/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                     - Health check
  GET  /api/picks                  - Ranked pick snapshot
  POST /api/picks/rebuild          - Trigger a snapshot rebuild
  GET  /api/symbols/{code}/events  - Recent events for one instrument
  GET  /api/symbols/{code}/prices  - Recent daily bars for one instrument
  POST /api/news/refresh           - Fetch news, upsert events, rebuild

Example:
  go run ./cmd/picks api
  go run ./cmd/picks api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	picksHandler := handlers.NewPicksHandler(
		a.pickRepo, a.symbolRepo, a.eventRepo, a.featureRepo, a.priceRepo,
		a.weights, a.rebuilder, a.cache, a.log,
	)
	symbolsHandler := handlers.NewSymbolsHandler(a.eventRepo, a.priceRepo, a.log)
	newsHandler := handlers.NewNewsHandler(a.ingest, a.cache, a.log)

	router := api.NewRouter(picksHandler, symbolsHandler, newsHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
