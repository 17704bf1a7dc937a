package api

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderri/server/internal/models"
)

func TestResetQuotasEndpoint(t *testing.T) {
	s := setupTestServer(t)

	s.mock.ExpectExec(`UPDATE user_profiles`).
		WithArgs(50).
		WillReturnResult(sqlmock.NewResult(0, 3))

	req := jsonRequest(t, "POST", "/api/admin/reset-quotas", nil)
	req.Header.Set("X-Service-Key", "admin-key")

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "Limits reset.", body["message"])
	assert.Nil(t, body["error"])
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestResetQuotasEndpointFailure(t *testing.T) {
	s := setupTestServer(t)

	s.mock.ExpectExec(`UPDATE user_profiles`).
		WithArgs(50).
		WillReturnError(assert.AnError)

	req := jsonRequest(t, "POST", "/api/admin/reset-quotas", nil)
	req.Header.Set("X-Service-Key", "admin-key")

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Failed to reset limits.", body.Error)
}

func TestResetQuotasEndpointRejectsBadKey(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		key  string
	}{
		{"wrong key", "not-the-key"},
		{"missing key", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, "POST", "/api/admin/reset-quotas", nil)
			if tt.key != "" {
				req.Header.Set("X-Service-Key", tt.key)
			}

			resp, err := s.app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestResetQuotasEndpointFailsClosedWhenUnconfigured(t *testing.T) {
	s := setupTestServer(t)
	s.cfg.Admin.ServiceKey = ""

	req := jsonRequest(t, "POST", "/api/admin/reset-quotas", nil)
	req.Header.Set("X-Service-Key", "")

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
