package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized,
		ErrForbidden, ErrInternal, ErrConflict, ErrGone, ErrServiceUnavail,
		ErrPaymentFailed, ErrPaymentUnreconciled,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, withInner.Error(), "INTERNAL_ERROR")
	assert.Contains(t, withInner.Error(), "connection refused")

	bare := &AppError{Code: "NOT_FOUND", Message: "coupon not found"}
	assert.Equal(t, "NOT_FOUND: coupon not found", bare.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := NotFound("coupon", "c-1")
	assert.True(t, errors.Is(appErr, ErrNotFound))
	assert.Nil(t, (&AppError{Code: "X", Message: "y"}).Unwrap())
}

func TestPaymentCapturedUnreconciled_IsDistinctFromPaymentFailed(t *testing.T) {
	err := PaymentCapturedUnreconciled("pay-42")
	require.NotNil(t, err)
	assert.Equal(t, "PAYMENT_CAPTURED_UNRECONCILED", err.Code)
	assert.Contains(t, err.Message, "pay-42")
	assert.Contains(t, err.Message, "contact support")
	assert.True(t, errors.Is(err, ErrPaymentUnreconciled))
	assert.False(t, errors.Is(err, ErrPaymentFailed))
}

func TestHTTPStatus_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("cart", "u-1"), http.StatusNotFound},
		{InvalidInput("bad"), http.StatusBadRequest},
		{Conflict("stale version"), http.StatusConflict},
		{Gone("snapshot consumed"), http.StatusGone},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("admin only"), http.StatusForbidden},
		{PaymentFailed("card declined"), http.StatusUnprocessableEntity},
		{ServiceUnavailable("settings not loaded"), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", ErrGone), http.StatusGone},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "error: %v", tt.err)
	}
}
