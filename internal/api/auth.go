package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtv4 "github.com/golang-jwt/jwt/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/renderri/server/internal/models"
	"github.com/renderri/server/internal/pkg/supabase"
)

const minPasswordLength = 6

func (s *Server) handleSignup(c *fiber.Ctx) error {
	var req models.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Email == "" || len(req.Password) < minPasswordLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid fields.",
		})
	}

	res, err := supabase.SignUp(req.Email, req.Password)
	if err != nil {
		s.logger.Error("Signup failed", "email", req.Email, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Signup failed.",
		})
	}

	// Profile only if the user is confirmed or auto-confirmed; unconfirmed
	// accounts get theirs lazily on first generation.
	if res.Confirmed {
		if err := s.profiles.Create(c.Context(), res.UserID, s.cfg.Quota.WeeklyAllowance); err != nil {
			s.logger.Error("Profile creation failed after signup", "user_id", res.UserID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Signup succeeded but profile creation failed. Please contact support.",
			})
		}
	}

	s.logger.Info("User signed up", "user_id", res.UserID, "needs_confirmation", !res.Confirmed)

	return c.JSON(fiber.Map{
		"needsConfirmation": !res.Confirmed,
		"error":             nil,
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	s.logger.Info("Authentication attempt", "email", req.Email)

	res, err := supabase.SignIn(req.Email, req.Password)
	if err != nil {
		s.logger.Error("Authentication error", "error", err)

		errorMessage := "Invalid credentials"
		if s.cfg.Server.Environment != "production" {
			errorMessage = fmt.Sprintf("Authentication error: %v", err)
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": errorMessage,
		})
	}

	// Generate JWT token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   res.UserID,
		"email": res.Email,
		"exp":   time.Now().Add(s.cfg.JWT.Expiration).Unix(),
		"iat":   time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	s.logger.Info("User successfully authenticated", "user_id", res.UserID)

	return c.JSON(models.LoginResponse{
		Token:     tokenString,
		TokenType: "Bearer",
	})
}

// currentUserID resolves the caller's user id from the JWT that the
// middleware validated. Empty means unauthenticated.
func currentUserID(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwtv4.Token)
	if !ok || token == nil {
		return ""
	}
	claims, ok := token.Claims.(jwtv4.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
