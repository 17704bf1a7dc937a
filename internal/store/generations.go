package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/renderri/server/internal/models"
)

// ErrGenerationNotFound is returned when a history row does not exist.
var ErrGenerationNotFound = errors.New("generation not found")

// GenerationStore persists generation history rows.
type GenerationStore struct {
	db *sqlx.DB
}

func NewGenerationStore(db *sqlx.DB) *GenerationStore {
	return &GenerationStore{db: db}
}

func (s *GenerationStore) Insert(ctx context.Context, gen *models.Generation) error {
	err := withRetry(ctx, "generations.insert", func() error {
		row := s.db.QueryRowContext(ctx,
			`INSERT INTO generations (id, user_id, prompt_text, image_url, model_used)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			gen.ID, gen.UserID, gen.PromptText, gen.ImageURL, gen.ModelUsed)
		return row.Scan(&gen.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// ListByUser returns the caller's history, newest first.
func (s *GenerationStore) ListByUser(ctx context.Context, userID string) ([]models.Generation, error) {
	generations := []models.Generation{}
	err := withRetry(ctx, "generations.list", func() error {
		return s.db.SelectContext(ctx, &generations,
			`SELECT id, user_id, prompt_text, image_url, COALESCE(model_used, '') AS model_used, created_at
			 FROM generations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return generations, nil
}

func (s *GenerationStore) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	var gen models.Generation
	err := withRetry(ctx, "generations.get", func() error {
		return s.db.GetContext(ctx, &gen,
			`SELECT id, user_id, prompt_text, image_url, COALESCE(model_used, '') AS model_used, created_at
			 FROM generations WHERE id = $1`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGenerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch generation: %w", err)
	}
	return &gen, nil
}

// UpdateImageURL rewrites a row's image pointer after the offload worker has
// moved the inline payload to object storage.
func (s *GenerationStore) UpdateImageURL(ctx context.Context, id, imageURL string) error {
	err := withRetry(ctx, "generations.update_url", func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE generations SET image_url = $2 WHERE id = $1`, id, imageURL)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrGenerationNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrGenerationNotFound) {
			return err
		}
		return fmt.Errorf("update image url: %w", err)
	}
	return nil
}
