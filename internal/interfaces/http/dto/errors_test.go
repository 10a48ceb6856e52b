package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeTransactionFailure, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeValidationRequired, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeInvalidTransition, http.StatusUnprocessableEntity},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"VALIDATION_ERROR", ErrCodeValidation},
		{"NOT_FOUND", ErrCodeNotFound},
		{"INVALID_TRANSITION", ErrCodeInvalidTransition},
		{"TRANSACTION_FAILURE", ErrCodeTransactionFailure},
		{"INVALID_STATE", ErrCodeInvalidState},
		{"CONFLICT", ErrCodeConflict},
		{"INVALID_INPUT", ErrCodeInvalidInput},
		{"UNAUTHORIZED", ErrCodeUnauthorized},
		// API codes pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestDomainCodesHaveStatus(t *testing.T) {
	for domainCode, apiCode := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[apiCode]
		assert.True(t, ok, "%s maps to %s which has no HTTP status", domainCode, apiCode)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("NOT_FOUND", "rental not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "rental not found", resp.Error.Message)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeConflict, "duplicate request", "req-123")

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	fields := []ValidationDetail{
		{Field: "amount", Message: "must be greater than zero"},
		{Field: "method", Message: "must be one of PIX CASH CARD BANK_TRANSFER"},
	}

	resp := NewValidationErrorResponse("Validation failed", "req-789", fields)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	require.Len(t, resp.Error.Fields, 2)
	assert.Equal(t, "amount", resp.Error.Fields[0].Field)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeInvalidTransition, "cannot move from RETURNED to SCHEDULED", "req-test")
	resp.Error.Details = map[string]string{"from": "RETURNED", "to": "SCHEDULED"}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errBody := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeInvalidTransition, errBody["code"])
	assert.Equal(t, "req-test", errBody["request_id"])
	assert.Equal(t, map[string]any{"from": "RETURNED", "to": "SCHEDULED"}, errBody["details"])
}

func TestErrorResponseTimestamp(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse(ErrCodeInternal, "Server error")
	after := time.Now()

	assert.False(t, resp.Error.Timestamp.Before(before.UTC().Add(-time.Millisecond)))
	assert.False(t, resp.Error.Timestamp.After(after.UTC().Add(time.Millisecond)))
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total         int64
		pageSize      int
		expectedPages int
		expectedSize  int
	}{
		{100, 10, 10, 10},
		{101, 10, 11, 10},
		{0, 10, 0, 10},
		{9, 10, 1, 10},
		{11, 10, 2, 10},
		// zero or negative page size falls back to the default
		{100, 0, 5, 20},
		{100, -1, 5, 20},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta([]string{}, tt.total, 1, tt.pageSize)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
		assert.Equal(t, tt.expectedSize, resp.Meta.PageSize)
	}
}
