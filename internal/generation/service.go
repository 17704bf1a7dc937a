package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/renderri/server/internal/config"
	"github.com/renderri/server/internal/metrics"
	"github.com/renderri/server/internal/models"
	"github.com/renderri/server/internal/store"
)

const (
	promptMinLen = 10
	promptMaxLen = 500
)

// ImageGenerator is the external generation backend. An empty result with a
// nil error means the backend replied without producing an image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	EnhanceImage(ctx context.Context, photoDataURI string) (string, error)
	Model() string
}

// ProfileStore is the quota side of the record store.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, userID string, allowance int) (*models.UserProfile, error)
	ConsumeQuota(ctx context.Context, userID string, cost int) (newRemaining int, ok bool, err error)
	Refund(ctx context.Context, userID string, amount int) error
	ResetAll(ctx context.Context, allowance int) error
}

// GenerationStore is the history side of the record store.
type GenerationStore interface {
	Insert(ctx context.Context, gen *models.Generation) error
}

// RefundAuditor records quota compensation attempts.
type RefundAuditor interface {
	Record(ctx context.Context, rec store.RefundRecord)
}

// Result is the success shape of the generate workflow.
type Result struct {
	ImageURL     string
	NewRemaining int
	GenerationID string
}

// Service runs the quota and generation workflow. Each invocation is a
// strict sequence: validate, fetch profile, spend quota, call the backend,
// persist history, publish the offload event. Nothing interleaves within a
// single call; cross-request serialization is handled by the conditional
// UPDATE in the profile store.
type Service struct {
	cfg       *config.Config
	profiles  ProfileStore
	history   GenerationStore
	generator ImageGenerator
	audit     RefundAuditor
	producer  sarama.SyncProducer
}

func NewService(cfg *config.Config, profiles ProfileStore, history GenerationStore, generator ImageGenerator, audit RefundAuditor, producer sarama.SyncProducer) *Service {
	return &Service{
		cfg:       cfg,
		profiles:  profiles,
		history:   history,
		generator: generator,
		audit:     audit,
		producer:  producer,
	}
}

// ValidatePrompt enforces the 10-500 character prompt bound.
func ValidatePrompt(prompt string) error {
	n := utf8.RuneCountInString(prompt)
	if n < promptMinLen {
		return fmt.Errorf("%w: prompt must be at least %d characters", ErrInvalidInput, promptMinLen)
	}
	if n > promptMaxLen {
		return fmt.Errorf("%w: prompt cannot exceed %d characters", ErrInvalidInput, promptMaxLen)
	}
	return nil
}

// ValidatePhotoDataURI checks that the payload is an image data URI.
func ValidatePhotoDataURI(uri string) error {
	if !strings.HasPrefix(uri, "data:image/") {
		return fmt.Errorf("%w: photo must be a valid data URI for an image", ErrInvalidInput)
	}
	return nil
}

// Generate runs the full quota-gated generation workflow for one user.
func (s *Service) Generate(ctx context.Context, userID, prompt string) (*Result, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := ValidatePrompt(prompt); err != nil {
		return nil, err
	}

	cost := s.cfg.Quota.GenerationCost
	allowance := s.cfg.Quota.WeeklyAllowance

	profile, err := s.profiles.GetOrCreate(ctx, userID, allowance)
	if err != nil {
		slog.Error("failed to fetch user profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w %v", ErrProfileUnavailable, err)
	}

	if profile.WeeklyGenerationsRemaining < cost {
		metrics.QuotaExceededTotal.Inc()
		return nil, ErrQuotaExceeded
	}

	newRemaining, ok, err := s.profiles.ConsumeQuota(ctx, userID, cost)
	if err != nil {
		slog.Error("failed to decrement quota", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w %v", ErrQuotaUpdateFailed, err)
	}
	if !ok {
		// Another request from the same user won the race between the
		// profile read and the conditional decrement.
		metrics.QuotaExceededTotal.Inc()
		return nil, ErrQuotaExceeded
	}

	imageURL, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		slog.Error("image generation failed", "user_id", userID, "error", err)
		s.refund(ctx, userID, cost, "generation_failed")
		metrics.GenerationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if imageURL == "" {
		s.refund(ctx, userID, cost, "no_image_returned")
		metrics.GenerationsTotal.WithLabelValues("no_image").Inc()
		return nil, ErrNoImageReturned
	}

	gen := &models.Generation{
		ID:         uuid.NewString(),
		UserID:     userID,
		PromptText: prompt,
		ImageURL:   imageURL,
		ModelUsed:  s.generator.Model(),
	}
	if err := s.history.Insert(ctx, gen); err != nil {
		// Swallowed: the user already spent quota and holds the image.
		slog.Error("failed to save generation history", "user_id", userID, "error", err)
		metrics.HistoryInsertFailuresTotal.Inc()
	} else {
		s.publishOffloadEvent(gen.ID)
	}

	metrics.GenerationsTotal.WithLabelValues("success").Inc()
	return &Result{
		ImageURL:     imageURL,
		NewRemaining: newRemaining,
		GenerationID: gen.ID,
	}, nil
}

// Enhance sends an existing image through the quality-improvement path.
// Deliberately decoupled from the quota workflow: no profile reads, no
// counter mutation, no history row.
func (s *Service) Enhance(ctx context.Context, photoDataURI string) (string, error) {
	if err := ValidatePhotoDataURI(photoDataURI); err != nil {
		return "", err
	}

	enhanced, err := s.generator.EnhanceImage(ctx, photoDataURI)
	if err != nil {
		slog.Error("image enhancement failed", "error", err)
		metrics.EnhancementsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("%w: %v", ErrEnhancementFailed, err)
	}
	if enhanced == "" {
		metrics.EnhancementsTotal.WithLabelValues("no_image").Inc()
		return "", ErrNoEnhancedImageReturned
	}

	metrics.EnhancementsTotal.WithLabelValues("success").Inc()
	return enhanced, nil
}

// ResetWeeklyQuota restores every profile to the full allowance. Privileged;
// the caller is authenticated with the admin service key, not a user session.
func (s *Service) ResetWeeklyQuota(ctx context.Context) error {
	if err := s.profiles.ResetAll(ctx, s.cfg.Quota.WeeklyAllowance); err != nil {
		slog.Error("weekly quota reset failed", "error", err)
		return fmt.Errorf("%w %v", ErrResetFailed, err)
	}
	slog.Info("weekly generation limits reset", "allowance", s.cfg.Quota.WeeklyAllowance)
	return nil
}

// refund compensates a spent quota unit after a downstream failure. Best
// effort: its own failure is logged and audited but never surfaced, so the
// caller still sees the original generation error.
func (s *Service) refund(ctx context.Context, userID string, amount int, reason string) {
	rec := store.RefundRecord{
		UserID: userID,
		Amount: amount,
		Reason: reason,
	}
	if err := s.profiles.Refund(ctx, userID, amount); err != nil {
		slog.Error("quota refund failed", "user_id", userID, "amount", amount, "reason", reason, "error", err)
		metrics.RefundFailuresTotal.Inc()
		rec.Error = err.Error()
	} else {
		rec.Succeeded = true
	}
	if s.audit != nil {
		s.audit.Record(ctx, rec)
	}
}

// publishOffloadEvent hands the new row to the offload worker. Fire and
// forget: a publish failure only means the image stays inline.
func (s *Service) publishOffloadEvent(generationID string) {
	if s.producer == nil {
		return
	}
	payload, _ := json.Marshal(models.OffloadEvent{GenerationID: generationID})
	msg := &sarama.ProducerMessage{
		Topic: s.cfg.Kafka.Topic,
		Value: sarama.StringEncoder(payload),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		slog.Error("failed to publish offload event", "generation_id", generationID, "error", err)
	}
}
