package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/renderri/server/internal/config"
	"github.com/renderri/server/internal/storage"
	"github.com/renderri/server/internal/worker"
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

	// Initialize image storage
	images, err := storage.NewLocalStorage(cfg.Storage.ImageDir, cfg.Storage.BaseURL)
	if err != nil {
		slog.Error("Failed to initialize image storage", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer group
	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Start the image offload worker
	w := worker.NewWorker(cfg, db, consumer, images)
	if err := w.Start(context.Background()); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}
