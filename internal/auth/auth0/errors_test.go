package auth0

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticationErrorMatching(t *testing.T) {
	cause := errors.New("bind: address already in use")
	err := fmt.Errorf("start listener: %w", NewAuthenticationError(ErrPortInUse, cause))

	assert.ErrorIs(t, err, ErrPortInUse)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrServerStartFailed)
	assert.True(t, IsAuthenticationError(err))
	assert.False(t, IsOAuthError(err))
}

func TestGetUserFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "timeout", err: NewAuthenticationError(ErrCallbackTimeout, nil), want: "Authentication timed out. Please try again."},
		{name: "port", err: ErrPortInUse, want: "The callback port is already in use. Close the application using it or choose another port with --callback-port."},
		{name: "denied in browser", err: &CallbackError{Kind: ProviderError, ProviderCode: "access_denied"}, want: "Authentication was cancelled or denied in the browser."},
		{name: "state", err: &CallbackError{Kind: StateMismatch}, want: "The callback did not match this login attempt. Please start the login again."},
		{
			name: "oauth wins over stage",
			err:  NewAuthenticationError(ErrCodeExchangeFailed, NewOAuthError("invalid_grant", "", 403)),
			want: "The authorization code was rejected or has expired. Please log in again.",
		},
		{name: "unknown", err: errors.New("boom"), want: "An unexpected error occurred. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetUserFriendlyMessage(tt.err))
		})
	}
}
