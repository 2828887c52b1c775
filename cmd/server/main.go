/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance and leave ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, ATTENDANCE_* environment, flags)
  2. Initialize logger and SQLite store
  3. Create API handler and leave scheduler
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the leave scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/attendance.db"

  # Run on different port
  ATTENDANCE_SERVER_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - api/scheduler.go: Background accrual and reset
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/warp/attendance-ledger/api"
	"github.com/warp/attendance-ledger/config"
	"github.com/warp/attendance-ledger/logger"
	"github.com/warp/attendance-ledger/store/files"
	"github.com/warp/attendance-ledger/store/sqlite"
)

const serviceName = "attendance-ledger"

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.SetLevel(cfg.Log.Level)
	log.Info().Msg("starting attendance ledger")

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	handler, err := api.NewHandler(store, files.NewDir(cfg.Files.Dir), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build handler")
	}

	resetMonth, resetDay, _ := cfg.Leave.ResetMonthDay()
	scheduler := api.NewLeaveScheduler(handler.Accrual, handler.Reset, handler.Location, log)
	scheduler.ResetMonth = resetMonth
	scheduler.ResetDay = resetDay
	scheduler.CheckInterval = cfg.Scheduler.CheckInterval
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handler, cfg.Server.AllowOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
