package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/phwatch/internal/api"
	"github.com/wonny/phwatch/internal/api/handlers"
	"github.com/wonny/phwatch/internal/realtime"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the REST API server with websocket push and auto refresh.

This command:
- serves the dashboard views over HTTP
- refreshes the overview on REFRESH_SCHEDULE and pushes it to /ws clients
- rebuilds the market structure on STRUCTURE_SCHEDULE

Endpoints:
  GET  /health                               - Health check
  GET  /api/status                           - Store/cache connectivity
  GET  /api/overview                         - Latest signal per active contract
  GET  /api/contracts/{code}                 - Signal history and KPIs
  GET  /api/contracts/{code}/history         - Price ticks with signal overlay
  GET  /api/contracts/{code}/snapshot        - Depth, imbalance and recent VWAP
  GET  /api/timeline                         - Recent OPEN_LONG/OPEN_SHORT signals
  GET  /api/structure                        - Date → contracts index
  GET  /api/jobs                             - Auto refresh job stats
  POST /api/jobs/{name}/run                  - Trigger one job
  GET  /ws                                   - Overview/alert stream
  GET  /metrics                              - Prometheus metrics

Example:
  go run ./cmd/phwatch api
  go run ./cmd/phwatch api --port 8080 --no-refresh`,
	RunE: runAPIServer,
}

var (
	apiPort   string
	noRefresh bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
	apiCmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "disable scheduled refresh and websocket push")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== phwatch API Server ===")

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	hub := realtime.NewHub(a.metrics, a.log)
	defer hub.Close()

	routes := api.Routes{
		Market:  handlers.NewMarketHandler(a.service, a.log),
		Stream:  hub,
		Metrics: a.metrics,
	}

	if !noRefresh {
		sched, _, err := a.newScheduler(hub)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		routes.Jobs = handlers.NewJobsHandler(sched, a.log)
		sched.Start()
		defer sched.Stop()

		// warm the structure and the overview before the first tick
		go func() {
			_, _ = sched.RunJobSync("market_structure")
			_, _ = sched.RunJobSync("refresh_overview")
		}()
	}

	server := api.New(a.cfg, a.log, api.NewRouter(routes, a.log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s (backend: %s)\n", a.cfg.Port, a.stores.Backend)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
