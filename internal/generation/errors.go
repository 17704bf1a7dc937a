package generation

import "errors"

// Workflow failures are values, never panics, and their messages are shown
// to the end user verbatim, which is why they read as sentences.
var (
	// ErrUnauthenticated means no session resolved to a user id.
	ErrUnauthenticated = errors.New("User not authenticated.")

	// ErrInvalidInput means the prompt or image payload failed validation.
	// Always wrapped with the specific reason.
	ErrInvalidInput = errors.New("Invalid input")

	// ErrProfileUnavailable means the profile read exhausted retries.
	ErrProfileUnavailable = errors.New("Could not retrieve user profile information.")

	// ErrQuotaExceeded is the business-rule rejection; nothing was mutated
	// and the generation backend was never called.
	ErrQuotaExceeded = errors.New("Not enough generations remaining this week.")

	// ErrQuotaUpdateFailed means the decrement write exhausted retries;
	// no generation call was attempted.
	ErrQuotaUpdateFailed = errors.New("Failed to update generation count. Please try again.")

	// ErrGenerationFailed wraps the backend's error detail. The spent quota
	// unit has been refunded, best effort.
	ErrGenerationFailed = errors.New("AI generation failed")

	// ErrNoImageReturned means the backend answered without an image.
	ErrNoImageReturned = errors.New("AI did not return an image URL.")

	// ErrEnhancementFailed wraps the backend's error detail for the
	// enhancement path.
	ErrEnhancementFailed = errors.New("AI enhancement failed")

	// ErrNoEnhancedImageReturned means enhancement produced no image.
	ErrNoEnhancedImageReturned = errors.New("AI did not return an enhanced image.")

	// ErrResetFailed means the bulk weekly reset did not complete.
	ErrResetFailed = errors.New("Failed to reset limits.")
)
