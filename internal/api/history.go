package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/renderri/server/internal/generation"
	"github.com/renderri/server/internal/models"
	"github.com/renderri/server/internal/store"
)

func (s *Server) handleListHistory(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
			Error: generation.ErrUnauthenticated.Error(),
		})
	}

	history, err := s.generations.ListByUser(c.Context(), userID)
	if err != nil {
		s.logger.Error("Error fetching history", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Could not retrieve generation history.",
		})
	}

	return c.JSON(fiber.Map{"history": history})
}

func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
			Error: generation.ErrUnauthenticated.Error(),
		})
	}

	gen, err := s.generations.GetByID(c.Context(), c.Params("id"))
	if errors.Is(err, store.ErrGenerationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Image not found.",
		})
	}
	if err != nil {
		s.logger.Error("Error fetching image", "id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Error fetching image details.",
		})
	}

	if gen.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse{
			Error: "You do not have permission to edit this image.",
		})
	}

	return c.JSON(fiber.Map{"image": gen})
}
