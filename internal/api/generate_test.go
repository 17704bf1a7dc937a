package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderri/server/internal/models"
)

func TestGenerateEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.images.imageURI = "data:image/png;base64,AAAA"

	s.mock.ExpectQuery(`SELECT .+ FROM user_profiles WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(profileRow("user-1", 5))
	s.mock.ExpectQuery(`UPDATE user_profiles`).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"weekly_generations_remaining"}).AddRow(4))
	s.mock.ExpectQuery(`INSERT INTO generations`).
		WithArgs(sqlmock.AnyArg(), "user-1", "a lighthouse in fog", "data:image/png;base64,AAAA", "gemini-2.0-flash-exp").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	req := jsonRequest(t, "POST", "/api/generate", models.GenerateRequest{Prompt: "a lighthouse in fog"})
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.GenerateResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "data:image/png;base64,AAAA", body.ImageURL)
	assert.Equal(t, 4, body.NewRemainingGenerations)
	assert.Nil(t, body.Error)

	require.Len(t, s.producer.messages, 1)
	assert.Equal(t, "generations", s.producer.messages[0].Topic)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestGenerateEndpointQuotaExceeded(t *testing.T) {
	s := setupTestServer(t)
	s.images.imageURI = "data:image/png;base64,AAAA"

	s.mock.ExpectQuery(`SELECT .+ FROM user_profiles WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(profileRow("user-1", 0))

	req := jsonRequest(t, "POST", "/api/generate", models.GenerateRequest{Prompt: "a lighthouse in fog"})
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Not enough generations remaining this week.", body.Error)
	assert.Empty(t, s.producer.messages)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestGenerateEndpointPromptTooShort(t *testing.T) {
	s := setupTestServer(t)

	req := jsonRequest(t, "POST", "/api/generate", models.GenerateRequest{Prompt: "short"})
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestGenerateEndpointBackendFailure(t *testing.T) {
	s := setupTestServer(t)
	s.images.imageErr = assert.AnError

	s.mock.ExpectQuery(`SELECT .+ FROM user_profiles WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(profileRow("user-1", 5))
	s.mock.ExpectQuery(`UPDATE user_profiles`).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"weekly_generations_remaining"}).AddRow(4))
	s.mock.ExpectExec(`UPDATE user_profiles`).
		WithArgs("user-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := jsonRequest(t, "POST", "/api/generate", models.GenerateRequest{Prompt: "a lighthouse in fog"})
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Error, "AI generation failed")
	assert.Empty(t, s.producer.messages)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestEnhanceEndpointNeedsNoSession(t *testing.T) {
	s := setupTestServer(t)
	s.images.enhancedURI = "data:image/png;base64,QkJCQg=="

	resp, err := s.app.Test(jsonRequest(t, "POST", "/api/enhance", models.EnhanceRequest{
		PhotoDataURI: "data:image/png;base64,AAAA",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.EnhanceResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "data:image/png;base64,QkJCQg==", body.EnhancedPhotoDataURI)
	assert.Nil(t, body.Error)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestEnhanceEndpointInvalidPayload(t *testing.T) {
	s := setupTestServer(t)

	resp, err := s.app.Test(jsonRequest(t, "POST", "/api/enhance", models.EnhanceRequest{
		PhotoDataURI: "http://example.com/cat.png",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
