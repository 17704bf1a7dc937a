package models

// SignupRequest carries the credentials for account creation.
type SignupRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"password123"`
}

// LoginRequest represents the login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"password123"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType string `json:"type" example:"Bearer"`
}

// GenerateRequest is the payload for POST /api/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse is returned on a successful generation. Error is
// always null here; failures return ErrorResponse instead, and clients
// discriminate on the presence of "error".
type GenerateResponse struct {
	ImageURL                string  `json:"imageUrl"`
	NewRemainingGenerations int     `json:"newRemainingGenerations"`
	Error                   *string `json:"error"`
}

// EnhanceRequest is the payload for POST /api/enhance.
type EnhanceRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
}

// EnhanceResponse is returned on a successful enhancement.
type EnhanceResponse struct {
	EnhancedPhotoDataURI string  `json:"enhancedPhotoDataUri"`
	Error                *string `json:"error"`
}

// ErrorResponse is the uniform failure shape for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}
