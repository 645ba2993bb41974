/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the License Balance Engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Configure zerolog
  3. Initialize SQLite store and the license type catalog
  4. Wire availability manager, lifecycle service, renewal scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080, env PORT)
  -db       SQLite database path (default: licenses.db, env DATABASE_PATH)
            Use ":memory:" for in-memory database
  -catalog  Optional JSON file with license type overrides (env CATALOG_PATH)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the renewal scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/licenses.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run with catalog overrides
  ./server -catalog="./config/license-types.json"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/talenthub/license-engine/api"
	"github.com/talenthub/license-engine/catalog"
	"github.com/talenthub/license-engine/engine"
	"github.com/talenthub/license-engine/license"
	"github.com/talenthub/license-engine/store/sqlite"
)

func main() {
	// .env is optional; real environment wins over file values.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("DATABASE_PATH", "licenses.db"), "SQLite database path")
	catalogPath := flag.String("catalog", envString("CATALOG_PATH", ""), "JSON file with license type overrides")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	cat := catalog.NewStatic(catalog.Seed()...)

	// Replay overrides persisted on earlier runs, then apply (and
	// persist) any new ones from the catalog file.
	stored, err := store.ListLicenseTypeOverrides(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load stored catalog overrides")
	}
	for _, lt := range stored {
		cat.Put(lt)
	}
	if *catalogPath != "" {
		n, err := loadCatalogFile(context.Background(), cat, store, *catalogPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *catalogPath).Msg("failed to load catalog overrides")
		}
		logger.Info().Int("types", n).Str("path", *catalogPath).Msg("catalog overrides loaded")
	}

	clock := engine.SystemClock{}
	manager := license.NewAvailabilityManager(store, cat, clock, logger)
	service := license.NewService(store, cat, manager, clock, logger)

	scheduler := license.NewRenewalScheduler(store, manager, clock, logger)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, cat, service, manager, clock, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// loadCatalogFile installs license type definitions from a JSON file
// containing an array of definitions and persists them so later runs
// pick them up without the file. Returns how many were loaded.
func loadCatalogFile(ctx context.Context, cat *catalog.Static, store *sqlite.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	types, err := catalog.ParseLicenseTypes(data)
	if err != nil {
		return 0, err
	}
	for _, lt := range types {
		cat.Put(lt)
		if err := store.SaveLicenseType(ctx, lt); err != nil {
			return 0, err
		}
	}
	return len(types), nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
