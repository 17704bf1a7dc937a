package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/renderri/server/internal/config"
	"github.com/renderri/server/internal/gemini"
	"github.com/renderri/server/internal/metrics"
	"github.com/renderri/server/internal/models"
	"github.com/renderri/server/internal/storage"
	"github.com/renderri/server/internal/store"
	"github.com/renderri/server/pkg/database"
)

// Worker consumes offload events and moves inline data-URI images out of
// Postgres rows into object storage, rewriting image_url to the stored
// location. Rows already holding a plain URL are skipped.
type Worker struct {
	cfg         *config.Config
	db          *database.Clients
	consumer    sarama.ConsumerGroup
	generations *store.GenerationStore
	images      storage.Storage
	ready       chan bool
}

func NewWorker(cfg *config.Config, db *database.Clients, consumer sarama.ConsumerGroup, images storage.Storage) *Worker {
	return &Worker{
		cfg:         cfg,
		db:          db,
		consumer:    consumer,
		generations: store.NewGenerationStore(db.DB),
		images:      images,
		ready:       make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting image offload worker", "topics", topics)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			// Reset the ready channel after a new session is created
			w.ready = make(chan bool)
		}
	}()

	<-w.ready // Wait till the consumer has been set up
	slog.Info("Worker setup complete; consumer ready")

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled; shutting down worker")
	}

	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	close(w.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.processMessage(message); err != nil {
			slog.Error("Failed to process offload event", "offset", message.Offset, "error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processMessage(msg *sarama.ConsumerMessage) error {
	var event models.OffloadEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to parse offload event: %w", err)
	}
	if event.GenerationID == "" {
		return fmt.Errorf("offload event missing generation id")
	}

	ctx := context.Background()
	w.setStatus(ctx, event.GenerationID, models.OffloadPending)

	// Retry the offload itself with the Kafka retry settings; the Kafka
	// message is marked either way, so the last failure is terminal.
	var err error
	for attempt := 1; attempt <= w.cfg.Kafka.RetryMax; attempt++ {
		var done bool
		done, err = w.offload(ctx, event.GenerationID)
		if err == nil {
			if done {
				w.setStatus(ctx, event.GenerationID, models.OffloadCompleted)
				metrics.OffloadsTotal.WithLabelValues("completed").Inc()
			} else {
				w.setStatus(ctx, event.GenerationID, models.OffloadSkipped)
				metrics.OffloadsTotal.WithLabelValues("skipped").Inc()
			}
			return nil
		}
		slog.Error("Image offload attempt failed", "generation_id", event.GenerationID, "attempt", attempt, "error", err)
		time.Sleep(w.cfg.Kafka.RetryBackoff)
	}

	w.setStatus(ctx, event.GenerationID, models.OffloadFailed)
	metrics.OffloadsTotal.WithLabelValues("failed").Inc()
	return err
}

// offload moves one row's image into storage. done is false when the row
// needed no work (already offloaded, or gone).
func (w *Worker) offload(ctx context.Context, generationID string) (done bool, err error) {
	gen, err := w.generations.GetByID(ctx, generationID)
	if errors.Is(err, store.ErrGenerationNotFound) {
		slog.Warn("Offload event for unknown generation", "generation_id", generationID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !strings.HasPrefix(gen.ImageURL, "data:") {
		return false, nil
	}

	mimeType, b64, err := gemini.ParseDataURI(gen.ImageURL)
	if err != nil {
		return false, fmt.Errorf("stored image is not a valid data URI: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return false, fmt.Errorf("failed to decode image payload: %w", err)
	}

	url, err := w.images.StoreImage(ctx, data, mimeType)
	if err != nil {
		return false, fmt.Errorf("failed to store image: %w", err)
	}

	if err := w.generations.UpdateImageURL(ctx, generationID, url); err != nil {
		// Avoid orphaning the stored file when the row update fails.
		if delErr := w.images.Delete(ctx, url); delErr != nil {
			slog.Error("Failed to clean up stored image", "url", url, "error", delErr)
		}
		return false, err
	}

	slog.Info("Image offloaded", "generation_id", generationID, "url", url, "bytes", len(data))
	return true, nil
}

func (w *Worker) setStatus(ctx context.Context, generationID, status string) {
	key := fmt.Sprintf("offload:%s", generationID)
	if err := w.db.Redis.Set(ctx, key, status, 0).Err(); err != nil {
		slog.Error("Failed to update offload status in Redis", "generation_id", generationID, "error", err)
	}
}
