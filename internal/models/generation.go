package models

import "time"

// Generation is one row of a user's generation history. Rows are
// written once on a successful generation and never mutated afterwards,
// except for the image offload rewrite of ImageURL.
type Generation struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	PromptText string    `json:"prompt_text" db:"prompt_text"`
	ImageURL   string    `json:"image_url" db:"image_url"`
	ModelUsed  string    `json:"model_used" db:"model_used"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// OffloadEvent is the Kafka message published after a generation row is
// inserted. The worker re-reads the row by id, so the payload stays small
// even when the image is stored inline as a data URI.
type OffloadEvent struct {
	GenerationID string `json:"generation_id"`
}

// Offload statuses mirrored into Redis under "offload:<generation id>".
const (
	OffloadPending   = "pending"
	OffloadCompleted = "completed"
	OffloadFailed    = "failed"
	OffloadSkipped   = "skipped"
)
