package auth

import (
	"context"
	"io"
	"time"

	"github.com/antman-dev/oauth-precommit/internal/auth/auth0"
)

// LoginOptions captures per-invocation knobs of a login attempt.
type LoginOptions struct {
	NoBrowser bool
	// CallbackPort overrides the configured redirect port when > 0.
	CallbackPort int
	// Timeout overrides the configured callback wait when > 0.
	Timeout time.Duration
	// CopyURL also places the authorization URL on the clipboard.
	CopyURL bool
	// Prompt enables pasting the callback URL by hand after ManualPromptDelay.
	// Its context is cancelled when Login returns; Prompt must return promptly once it is.
	Prompt            func(ctx context.Context, prompt string) (string, error)
	ManualPromptDelay time.Duration
	// OnAuthURL is called with the authorization URL once the listener is ready.
	OnAuthURL func(authURL string)
	// Out receives user-facing messages; nil means stdout.
	Out io.Writer
}

// TokenStore persists the token set produced by a successful exchange.
type TokenStore interface {
	Save(ctx context.Context, tokens *auth0.TokenSet) (string, error)
}

// TokenExchanger trades an authorization code for tokens.
type TokenExchanger interface {
	ExchangeCodeForTokens(ctx context.Context, verifier, code string) (*auth0.TokenSet, error)
}

// Authenticator runs a complete interactive login.
type Authenticator interface {
	Login(ctx context.Context, opts *LoginOptions) *LoginResult
}
