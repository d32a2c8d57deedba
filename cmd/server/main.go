/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reminder engine ops server: the run audit
  store, the user tree and push relay clients, the HTTP API, and the
  automated reminder scheduler.

STARTUP SEQUENCE:
  1. Load environment configuration (flags override)
  2. Open SQLite audit store
  3. Wire runner (snapshot source, relay, store)
  4. Configure HTTP router, start scheduler
  5. Serve with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: from PORT env, then 8080)
  -db         SQLite database path (":memory:" for in-memory)
  -userdb     User tree base URL
  -relay      Push relay base URL
  -scheduler  Enable the automated scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (no new passes launched)
  2. Stop accepting new connections, drain (30s timeout)
  3. Close the audit store

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Timetable
  - cmd/remindctl: one-shot operator runs
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hybridhq/reminder-engine/api"
	"github.com/hybridhq/reminder-engine/config"
	"github.com/hybridhq/reminder-engine/dispatch"
	"github.com/hybridhq/reminder-engine/job"
	"github.com/hybridhq/reminder-engine/store/sqlite"
	"github.com/hybridhq/reminder-engine/store/userdb"
)

func main() {
	cfg := config.Load()

	// Flags override the environment
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	userdbURL := flag.String("userdb", cfg.UserDBURL, "user tree base URL")
	relayURL := flag.String("relay", cfg.RelayURL, "push relay base URL")
	schedulerOn := flag.Bool("scheduler", cfg.SchedulerEnabled, "enable the automated scheduler")
	flag.Parse()

	// Initialize audit store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire runner
	runner := &job.Runner{
		Users: userdb.NewClient(*userdbURL),
		Relay: dispatch.NewRelayClient(*relayURL),
		Runs:  store,
		Limit: cfg.DispatchLimit,
	}

	// Initialize handler and scheduler
	handler := api.NewHandler(runner, store, runner.Users)
	scheduler := api.NewReminderScheduler(runner)
	scheduler.Enabled = *schedulerOn
	handler.Scheduler = scheduler
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%s", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
