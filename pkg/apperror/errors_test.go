package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("member: %w", ErrNotFound), http.StatusNotFound},
		{"invalid input", fmt.Errorf("invite code is invalid: %w", ErrInvalidInput), http.StatusBadRequest},
		{"conflict", fmt.Errorf("already used: %w", ErrConflict), http.StatusConflict},
		{"rate limited", ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"unavailable", Unavailable("append ledger entry", errors.New("conn refused")), http.StatusServiceUnavailable},
		{"app error code wins", New(http.StatusPaymentRequired, "payment required", ErrConflict), http.StatusPaymentRequired},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatus(tc.err))
		})
	}
}

func TestUnavailableIsRetryable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable("sum points", cause)

	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Unavailable("noop", nil))
	assert.False(t, IsRetryable(ErrConflict))
}
