package api

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/renderri/server/internal/generation"
	"github.com/renderri/server/internal/models"
)

// requireServiceKey gates privileged routes on the admin service key.
// Fails closed when no key is configured.
func (s *Server) requireServiceKey(c *fiber.Ctx) error {
	key := s.cfg.Admin.ServiceKey
	provided := c.Get("X-Service-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
			Error: "Invalid service key",
		})
	}
	return c.Next()
}

// handleResetQuotas restores every profile to the weekly allowance. Invoked
// by an external scheduler, typically once a week.
func (s *Server) handleResetQuotas(c *fiber.Ctx) error {
	if err := s.svc.ResetWeeklyQuota(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: generation.ErrResetFailed.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Limits reset.",
		"error":   nil,
	})
}
