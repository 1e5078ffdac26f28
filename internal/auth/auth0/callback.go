package auth0

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"
)

// CallbackErrorKind classifies why a callback did not yield a usable code.
type CallbackErrorKind int

const (
	// ProviderError means the authorization server redirected with an error parameter.
	ProviderError CallbackErrorKind = iota + 1
	// MalformedCallback means code or state was absent.
	MalformedCallback
	// StateMismatch means the state did not match the one sent in the authorization URL.
	StateMismatch
)

// String returns the wire-friendly name of the kind.
func (k CallbackErrorKind) String() string {
	switch k {
	case ProviderError:
		return "provider_error"
	case MalformedCallback:
		return "malformed_callback"
	case StateMismatch:
		return "state_mismatch"
	default:
		return "unknown"
	}
}

// CallbackError describes a rejected callback.
type CallbackError struct {
	Kind CallbackErrorKind
	// ProviderCode and Description echo the provider's error and error_description.
	ProviderCode string
	Description  string
}

func (e *CallbackError) Error() string {
	switch e.Kind {
	case ProviderError:
		if e.Description != "" {
			return fmt.Sprintf("authorization server returned %s: %s", e.ProviderCode, e.Description)
		}
		return fmt.Sprintf("authorization server returned %s", e.ProviderCode)
	case StateMismatch:
		return "callback state does not match the authorization request"
	default:
		if e.Description != "" {
			return "malformed callback: " + e.Description
		}
		return "malformed callback"
	}
}

// CallbackResult is the outcome of one callback. Exactly one of Code or Err is set.
type CallbackResult struct {
	Code string
	Err  *CallbackError
}

// OK reports whether the callback carried a trusted authorization code.
func (r CallbackResult) OK() bool { return r.Err == nil && r.Code != "" }

// ValidateCallback classifies the query of a redirect back to the loopback listener.
// An error parameter wins over everything else; then code and state must both be present,
// and state must equal expectedState. A blank code counts as missing.
func ValidateCallback(expectedState string, query url.Values) CallbackResult {
	if providerCode := strings.TrimSpace(query.Get("error")); providerCode != "" {
		return CallbackResult{Err: &CallbackError{
			Kind:         ProviderError,
			ProviderCode: providerCode,
			Description:  query.Get("error_description"),
		}}
	}

	code := strings.TrimSpace(query.Get("code"))
	state := query.Get("state")
	switch {
	case code == "" && state == "":
		return CallbackResult{Err: &CallbackError{Kind: MalformedCallback, Description: "code and state are missing"}}
	case code == "":
		return CallbackResult{Err: &CallbackError{Kind: MalformedCallback, Description: "code is missing"}}
	case state == "":
		return CallbackResult{Err: &CallbackError{Kind: MalformedCallback, Description: "state is missing"}}
	}

	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return CallbackResult{Err: &CallbackError{Kind: StateMismatch}}
	}
	return CallbackResult{Code: code}
}
