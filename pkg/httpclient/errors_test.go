package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chygoz/storefront/pkg/errors"
)

func makeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func envelope(code, message string) string {
	return `{"error":{"code":"` + code + `","message":"` + message + `"}}`
}

func TestParseResponseError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		sentinel   error
		wantStatus int
	}{
		{"not found", http.StatusNotFound, apperrors.ErrNotFound, http.StatusNotFound},
		{"bad request", http.StatusBadRequest, apperrors.ErrInvalidInput, http.StatusBadRequest},
		{"conflict", http.StatusConflict, apperrors.ErrConflict, http.StatusConflict},
		{"unauthorized", http.StatusUnauthorized, apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", http.StatusForbidden, apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{"unprocessable", http.StatusUnprocessableEntity, apperrors.ErrUnprocessable, http.StatusUnprocessableEntity},
		{"unavailable", http.StatusServiceUnavailable, apperrors.ErrServiceUnavail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(makeResponse(tt.status, envelope("X", "nope")), "order-api")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.wantStatus, apperrors.HTTPStatus(err))
		})
	}
}

func TestParseResponseError_KeepsMessage(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusUnprocessableEntity, envelope("OUT_OF_STOCK", "sku-1 sold out")), "order-api")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "order-api: sku-1 sold out", appErr.Message)
}

func TestParseResponseError_ServerError(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadGateway, envelope("UPSTREAM", "boom")), "order-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order-api server error (502/UPSTREAM)")
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
}

func TestParseResponseError_Unstructured(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadRequest, "<html>bad</html>"), "order-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order-api returned status 400: <html>bad</html>")
}

func TestParseResponseError_NullErrorField(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadRequest, `{"error":null}`), "order-api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned status 400")
}

func TestParseResponseError_OtherStatusKeepsCode(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusTooManyRequests, envelope("RATE_LIMITED", "slow down")), "order-api")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "RATE_LIMITED", appErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Status)
}

