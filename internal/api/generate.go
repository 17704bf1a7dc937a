package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/renderri/server/internal/generation"
	"github.com/renderri/server/internal/models"
)

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
			Error: generation.ErrUnauthenticated.Error(),
		})
	}

	var req models.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	result, err := s.svc.Generate(c.Context(), userID, req.Prompt)
	if err != nil {
		return c.Status(statusForError(err)).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(models.GenerateResponse{
		ImageURL:                result.ImageURL,
		NewRemainingGenerations: result.NewRemaining,
		Error:                   nil,
	})
}

func (s *Server) handleEnhance(c *fiber.Ctx) error {
	var req models.EnhanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	enhanced, err := s.svc.Enhance(c.Context(), req.PhotoDataURI)
	if err != nil {
		return c.Status(statusForError(err)).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(models.EnhanceResponse{
		EnhancedPhotoDataURI: enhanced,
		Error:                nil,
	})
}

// statusForError maps workflow failures onto HTTP statuses. The body is
// always the {error} shape; clients discriminate on the field, not the code.
func statusForError(err error) int {
	switch {
	case errors.Is(err, generation.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, generation.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, generation.ErrQuotaExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, generation.ErrGenerationFailed),
		errors.Is(err, generation.ErrNoImageReturned),
		errors.Is(err, generation.ErrEnhancementFailed),
		errors.Is(err, generation.ErrNoEnhancedImageReturned):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
