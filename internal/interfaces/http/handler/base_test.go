package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/interfaces/http/dto"
	"github.com/rental/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
		expectedMsg  string
	}{
		{
			name:         "not found",
			err:          shared.NewDomainError(shared.CodeNotFound, "Rental not found"),
			expectedCode: http.StatusNotFound,
			expectedErr:  dto.ErrCodeNotFound,
			expectedMsg:  "Rental not found",
		},
		{
			name:         "validation",
			err:          shared.NewDomainError(shared.CodeValidation, "amount must be greater than zero"),
			expectedCode: http.StatusBadRequest,
			expectedErr:  dto.ErrCodeValidation,
			expectedMsg:  "amount must be greater than zero",
		},
		{
			name:         "invalid transition",
			err:          shared.NewDomainError(shared.CodeInvalidTransition, "cannot move from COMPLETED to DRAFT"),
			expectedCode: http.StatusUnprocessableEntity,
			expectedErr:  dto.ErrCodeInvalidTransition,
			expectedMsg:  "cannot move from COMPLETED to DRAFT",
		},
		{
			name:         "transaction failure",
			err:          shared.NewDomainError(shared.CodeTransactionFailure, "Failed to record payment"),
			expectedCode: http.StatusInternalServerError,
			expectedErr:  dto.ErrCodeTransactionFailure,
			expectedMsg:  "Failed to record payment",
		},
		{
			name:         "plain error is hidden",
			err:          errors.New("pq: connection refused"),
			expectedCode: http.StatusInternalServerError,
			expectedErr:  dto.ErrCodeInternal,
			expectedMsg:  "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(middleware.RequestIDKey, "req-1")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
			assert.Equal(t, tt.expectedMsg, resp.Error.Message)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestBaseHandler_HandleError_CopiesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	err := shared.NewDomainError(shared.CodeInvalidTransition, "not allowed").
		WithDetail("from", "COMPLETED").
		WithDetail("to", "DRAFT")
	(&BaseHandler{}).HandleError(c, err)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COMPLETED", resp.Error.Details["from"])
	assert.Equal(t, "DRAFT", resp.Error.Details["to"])
}

func TestBaseHandler_TenantID(t *testing.T) {
	t.Run("missing tenant answers 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		_, ok := (&BaseHandler{}).tenantID(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("resolved tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		tenantID := uuid.New()
		c.Set(middleware.TenantIDKey, tenantID.String())

		got, ok := (&BaseHandler{}).tenantID(c)
		assert.True(t, ok)
		assert.Equal(t, tenantID, got)
	})
}

func TestBaseHandler_PathUUID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	_, ok := (&BaseHandler{}).pathUUID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
}

func TestBaseHandler_SuccessWithMeta(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	(&BaseHandler{}).SuccessWithMeta(c, []string{"a", "b"}, 45, 2, 20)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
