// Package auth0 implements the OAuth 2.0 Authorization Code flow with PKCE against an
// Auth0-compatible authorization server. It provides PKCE parameter generation, the
// authorization URL, a loopback callback listener and the code-for-token exchange.
package auth0

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuthError represents an error response returned by the authorization server.
type OAuthError struct {
	// Code is the OAuth error code.
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// NewOAuthError creates a new OAuth error with the specified code, description, and status code.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		StatusCode:  statusCode,
	}
}

// AuthenticationError represents a failure of one stage of the login flow.
type AuthenticationError struct {
	// Type is the machine-readable error category.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is an HTTP status code, or a process exit code for port_in_use.
	Code int `json:"code"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Is matches any AuthenticationError of the same Type, so a wrapped copy created by
// NewAuthenticationError still satisfies errors.Is against the base value.
func (e *AuthenticationError) Is(target error) bool {
	t, ok := target.(*AuthenticationError)
	return ok && t.Type == e.Type
}

// Common authentication error types.
var (
	// ErrConfiguration is returned when required settings are missing or invalid.
	ErrConfiguration = &AuthenticationError{
		Type:    "configuration_error",
		Message: "OAuth configuration is incomplete",
		Code:    http.StatusBadRequest,
	}

	// ErrServerStartFailed represents an error when starting the OAuth callback server fails.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse represents an error when the OAuth callback port is already in use.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13, // exit code
	}

	// ErrCallbackTimeout represents an error when waiting for OAuth callback times out.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}

	// ErrFlowCancelled is returned when the caller cancels the flow while it waits.
	ErrFlowCancelled = &AuthenticationError{
		Type:    "flow_cancelled",
		Message: "Authentication was cancelled",
		Code:    499,
	}

	// ErrCodeExchangeFailed represents an error when exchanging authorization code for tokens fails.
	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange authorization code for tokens",
		Code:    http.StatusBadRequest,
	}

	// ErrStorage is returned when the token record cannot be written or read.
	ErrStorage = &AuthenticationError{
		Type:    "storage_error",
		Message: "Failed to persist tokens",
		Code:    http.StatusInternalServerError,
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	_, ok := errors.AsType[*AuthenticationError](err)
	return ok
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	_, ok := errors.AsType[*OAuthError](err)
	return ok
}

// GetUserFriendlyMessage returns a user-friendly error message based on the error type.
// Provider details are preferred over the generic stage message when both are present.
func GetUserFriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	if cbErr, ok := errors.AsType[*CallbackError](err); ok {
		switch cbErr.Kind {
		case ProviderError:
			if cbErr.ProviderCode == "access_denied" {
				return "Authentication was cancelled or denied in the browser."
			}
			return fmt.Sprintf("The authorization server rejected the request: %s", cbErr.Error())
		case StateMismatch:
			return "The callback did not match this login attempt. Please start the login again."
		default:
			return "The callback was missing required parameters. Please start the login again."
		}
	}
	if oauthErr, ok := errors.AsType[*OAuthError](err); ok {
		switch oauthErr.Code {
		case "access_denied":
			return "Authentication was cancelled or denied."
		case "invalid_grant":
			return "The authorization code was rejected or has expired. Please log in again."
		case "invalid_request":
			return "Invalid authentication request. Please try again."
		case "server_error":
			return "Authentication server error. Please try again later."
		default:
			if oauthErr.Description != "" {
				return fmt.Sprintf("Authentication failed: %s", oauthErr.Description)
			}
			return fmt.Sprintf("Authentication failed: %s", oauthErr.Code)
		}
	}
	if authErr, ok := errors.AsType[*AuthenticationError](err); ok {
		switch authErr.Type {
		case "configuration_error":
			if authErr.Cause != nil {
				return fmt.Sprintf("Configuration is incomplete: %v", authErr.Cause)
			}
			return "Configuration is incomplete."
		case "port_in_use":
			return "The callback port is already in use. Close the application using it or choose another port with --callback-port."
		case "server_start_failed":
			return "Could not start the local callback listener."
		case "callback_timeout":
			return "Authentication timed out. Please try again."
		case "flow_cancelled":
			return "Authentication was cancelled."
		case "code_exchange_failed":
			return "Could not exchange the authorization code for tokens. Please try again."
		case "storage_error":
			return "Tokens were issued but could not be saved locally."
		default:
			return "Authentication failed. Please try again."
		}
	}
	return "An unexpected error occurred. Please try again."
}
