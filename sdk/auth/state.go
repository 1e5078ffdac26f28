package auth

import "github.com/antman-dev/oauth-precommit/internal/auth/auth0"

// FlowState is the position of one login attempt in its lifecycle.
type FlowState int

const (
	StateInit FlowState = iota
	StateAwaitingCallback
	StateResolvedSuccess
	StateResolvedFailure
	StateTimedOut
	StateCancelled
	StateExchanging
	StateComplete
	StateExchangeFailed
	StatePersistFailed
	// StateFailed covers failures before the callback wait: configuration, PKCE, bind.
	StateFailed
)

// String returns a readable state name.
func (s FlowState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateResolvedSuccess:
		return "resolved_success"
	case StateResolvedFailure:
		return "resolved_failure"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	case StateExchanging:
		return "exchanging"
	case StateComplete:
		return "complete"
	case StateExchangeFailed:
		return "exchange_failed"
	case StatePersistFailed:
		return "persist_failed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen from s.
func (s FlowState) Terminal() bool {
	switch s {
	case StateResolvedFailure, StateTimedOut, StateCancelled,
		StateComplete, StateExchangeFailed, StatePersistFailed, StateFailed:
		return true
	default:
		return false
	}
}

// LoginResult is the single outcome of a login attempt.
type LoginResult struct {
	State FlowState
	// Tokens and Path are set only when State is StateComplete.
	Tokens *auth0.TokenSet
	Path   string
	Err    error
}

// OK reports whether tokens were obtained and saved.
func (r *LoginResult) OK() bool {
	return r != nil && r.State == StateComplete && r.Err == nil
}
