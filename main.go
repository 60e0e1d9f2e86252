package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minhduc280903/molforge/config"
	"github.com/minhduc280903/molforge/internal/adapter/chemservice"
	"github.com/minhduc280903/molforge/internal/chem"
	"github.com/minhduc280903/molforge/internal/metrics"
	store "github.com/minhduc280903/molforge/internal/repository"
	"github.com/minhduc280903/molforge/internal/service"
	transport "github.com/minhduc280903/molforge/internal/transport/http"
	"github.com/minhduc280903/molforge/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting discovery orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Structure service: %s", cfg.ChemServiceURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Load transformation rule catalog
	rules, err := chem.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load rule catalog: %v", err)
	}
	log.Printf("Loaded %d transformation rules", len(rules))

	// Initialize structure service client
	chemClient := chemservice.NewClient(cfg.ChemServiceURL, cfg.ChemServiceTimeout)

	// Initialize admission policy engine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Initialize service
	svc := service.New(db, chemClient, rules, cfg, policyEngine, m)

	// Start pipeline workers and the recovery reaper
	svc.StartWorkers(ctx)
	go svc.RunReaper(ctx)

	// Create HTTP server
	server := transport.NewServer(svc, registry)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
