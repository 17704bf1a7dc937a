package main

import (
	"log/slog"
	"os"

	"github.com/renderri/server/internal/api"
	"github.com/renderri/server/internal/config"
	"github.com/renderri/server/internal/gemini"
	"github.com/renderri/server/internal/pkg/supabase"
	"github.com/renderri/server/pkg/database"
	"github.com/renderri/server/pkg/kafka"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("✅ Connected to databases")

	if err := db.CreateTables(); err != nil {
		slog.Error("Failed to create tables", "error", err)
		os.Exit(1)
	}

	// Initialize the Supabase auth client
	if err := supabase.InitClient(cfg.Supabase.URL, cfg.Supabase.AnonKey); err != nil {
		slog.Error("Failed to initialize Supabase auth", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Connected to Supabase auth")

	// Initialize Kafka producer for offload events
	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("✅ Connected to Kafka")

	// Create and start server
	generator := gemini.NewClient(cfg.Gemini)
	server := api.NewServer(cfg, db, producer, generator)
	slog.Info("🚀 Server starting", "port", cfg.Server.Port)
	if err := server.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
