package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unfaced/unfaced/internal/biometric"
	"github.com/unfaced/unfaced/internal/config"
	"github.com/unfaced/unfaced/internal/consent"
	"github.com/unfaced/unfaced/internal/registry"
	"github.com/unfaced/unfaced/internal/store"
	"github.com/unfaced/unfaced/internal/store/jsonfile"
	"github.com/unfaced/unfaced/internal/store/postgres"
	"github.com/unfaced/unfaced/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the consent API server.
Uses the PostgreSQL backend when DATABASE_URL is set, otherwise records are
kept in JSON files under the data directory.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// openStore selects the record backend from the configuration.
func openStore(cfg *config.Config) (store.Store, func() error, error) {
	if cfg.Database.URL != "" {
		fmt.Printf("Using PostgreSQL backend\n")
		s, err := postgres.Open(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing PostgreSQL: %w", err)
		}
		return s, s.Close, nil
	}

	fmt.Printf("Using JSON file backend in %s\n", cfg.Storage.DataDir)
	s, err := jsonfile.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing JSON file backend: %w", err)
	}
	return s, func() error { return nil }, nil
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	files, err := store.NewFileArea(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("preparing media directories: %w", err)
	}

	client := biometric.NewClient(cfg.Embedding.URL)
	reg := registry.New(st, client, client)
	svc := consent.New(st, files, client, reg, cfg.Matching.FaceThreshold)

	// Repair any blob left in the wrong zone by an earlier crash before
	// serving traffic.
	if err := svc.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconciling media area: %w", err)
	}

	fmt.Printf("Building in-memory HNSW index for face matching...\n")
	if err := reg.BuildIndex(ctx); err != nil {
		return fmt.Errorf("building face index: %w", err)
	}
	fmt.Printf("Face index ready with %d identities\n", reg.IndexSize())

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(host, port, reg, svc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting consent API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
