package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codesync/internal/app"
	"codesync/internal/config"
	"codesync/internal/sandbox"
)

const shutdownTimeout = 30 * time.Second

// Main entry point with signal management
// Graceful shutdown on SIGINT/SIGTERM ensures proper resource cleanup
func main() {
	// ARCHITECTURAL DISCOVERY: The same binary doubles as the sandbox helper,
	// it never returns from RunHelper unless confinement failed
	if sandbox.IsHelperInvocation(os.Args) {
		err := sandbox.RunHelper(os.Args[2:])
		fmt.Fprintf(os.Stderr, "sandbox: %v\n", err)
		os.Exit(126)
	}

	configPath := flag.String("config", os.Getenv("CODESYNC_CONFIG_FILE"), "path to a JSON configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, nil); err != nil {
		log.Fatal(err)
	}
}

// run starts the server and blocks until ctx is cancelled
// ARCHITECTURAL DISCOVERY: Separate run function enables testing and error handling
func run(ctx context.Context, configPath string, ready chan<- string) error {
	// STEP 1: Load configuration with precedence (file > env > defaults)
	cfg, err := config.LoadConfigWithPrecedence(configPath)
	if err != nil {
		log.Printf("Ignoring config file: %v", err)
	}

	// STEP 2: Create application with configuration
	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// STEP 3: Start serving. The hub outlives ctx so Stop can drain it in order.
	if err := application.Start(context.Background()); err != nil {
		return fmt.Errorf("application error: %w", err)
	}
	if ready != nil {
		ready <- application.GetAddr()
	}

	// STEP 4: Wait for shutdown signal
	<-ctx.Done()
	log.Printf("Shutdown requested, stopping gracefully")

	// FUNCTIONAL DISCOVERY: Timeout context prevents hanging shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
