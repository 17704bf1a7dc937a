package models

import "time"

// UserProfile tracks the weekly generation allowance for one user.
// The user_id matches the Supabase auth user id.
type UserProfile struct {
	UserID                     string     `json:"user_id" db:"user_id"`
	WeeklyGenerationsRemaining int        `json:"weekly_generations_remaining" db:"weekly_generations_remaining"`
	LastGenerationResetAt      *time.Time `json:"last_generation_reset_at" db:"last_generation_reset_at"`
	UpdatedAt                  *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}
