package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genie-dash/genie/internal/config"
	"github.com/genie-dash/genie/internal/session"
	"github.com/genie-dash/genie/internal/store"
	"github.com/genie-dash/genie/pkg/toolstream"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load environment variables
	sessionName := os.Getenv("GENIE_SESSION_NAME")
	redisURL := os.Getenv("REDIS_URL")
	storeURL := os.Getenv("GENIE_STORE_URL")
	configPath := os.Getenv("GENIE_CONFIG")

	// 2. Optional genie.yml overrides environment defaults
	var cfg *config.GenieConfig
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", configPath, err)
			os.Exit(1)
		}
		cfg = loaded
		if sessionName == "" {
			sessionName = cfg.Session
		}
		if redisURL == "" {
			redisURL = cfg.Redis.URL
		}
		if storeURL == "" {
			storeURL = cfg.Store.URL
		}
	}

	if sessionName == "" {
		// Ephemeral sessions get a generated name so multiple daemons can
		// share one Redis without crosstalk
		sessionName = fmt.Sprintf("genie-%s", uuid.NewString()[:8])
	}
	if redisURL == "" || storeURL == "" {
		fmt.Fprintf(os.Stderr, "Error: REDIS_URL and GENIE_STORE_URL must be set\n")
		os.Exit(1)
	}

	// 3. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 4. Create tool-call stream client
	stream, err := toolstream.NewClient(redisOpts, sessionName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create stream client: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	// 5. Verify Redis connectivity
	ctx := context.Background()
	if err := stream.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 6. Create the dashboard store client. Connectivity failures here are
	// non-fatal: the session degrades to an empty dashboard and recovers on
	// the next store call.
	dashStore, err := store.NewClient(storeURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid GENIE_STORE_URL: %v\n", err)
		os.Exit(1)
	}
	defer dashStore.Close()

	// 7. Build engine config from genie.yml layout settings
	engineCfg := session.Config{SessionName: sessionName}
	if cfg != nil && cfg.Layout != nil {
		engineCfg.DashboardID = cfg.Layout.DashboardID
		if cfg.Layout.PersistDebounceMs != nil {
			engineCfg.PersistDelay = time.Duration(*cfg.Layout.PersistDebounceMs) * time.Millisecond
		}
	}

	engine := session.NewEngine(engineCfg, stream, dashStore)

	fmt.Printf("Session daemon starting for session '%s'\n", sessionName)

	// 8. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 9. Start engine in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(runCtx)
	}()

	// 10. Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Session error: %v\n", runErr)
			os.Exit(1)
		}
	}

	fmt.Println("Session daemon stopped")
}
