package auth0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	authorizePath = "/authorize"
	tokenPath     = "/oauth/token"

	defaultExchangeTimeout = 30 * time.Second
)

// ErrMalformedTokenResponse marks a 2xx token response missing a required field.
var ErrMalformedTokenResponse = errors.New("malformed token response")

// RedirectURI returns the loopback redirect URI registered for port.
// The authorization request and the token exchange must send the same value.
func RedirectURI(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, CallbackPath)
}

func endpoint(domain string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   "https://" + domain + authorizePath,
		TokenURL:  "https://" + domain + tokenPath,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func oauthConfig(cfg config.Auth0Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    endpoint(cfg.Domain),
		RedirectURL: RedirectURI(cfg.RedirectPort),
		Scopes:      cfg.Scopes,
	}
}

// BuildAuthorizationURL returns the URL the user visits to authorize this client.
// It is a pure function of cfg and params.
func BuildAuthorizationURL(cfg config.Auth0Config, params *PKCEParameters) string {
	return oauthConfig(cfg).AuthCodeURL(params.State,
		oauth2.SetAuthURLParam("code_challenge", params.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", params.CodeChallengeMethod),
		oauth2.SetAuthURLParam("audience", cfg.Audience),
	)
}

// Auth0Auth performs the token endpoint half of the flow.
type Auth0Auth struct {
	cfg        config.Auth0Config
	httpClient *http.Client
}

// Option customizes an Auth0Auth.
type Option func(*Auth0Auth)

// WithHTTPClient replaces the client used for the token exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Auth0Auth) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// NewAuth0Auth creates a token exchange client. The default HTTP client honours
// cfg.ProxyURL.
func NewAuth0Auth(cfg *config.Config, opts ...Option) *Auth0Auth {
	a := &Auth0Auth{
		cfg:        cfg.Auth0,
		httpClient: util.SetProxy(cfg, &http.Client{Timeout: defaultExchangeTimeout}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExchangeCodeForTokens trades an authorization code for tokens. The redirect URI sent
// is the one used in the authorization URL. Any failure is wrapped in ErrCodeExchangeFailed;
// provider rejections carry an *OAuthError.
func (a *Auth0Auth) ExchangeCodeForTokens(ctx context.Context, verifier, code string) (*TokenSet, error) {
	if code == "" {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, errors.New("authorization code is empty"))
	}

	log.Debug("Exchanging authorization code for tokens")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	tok, err := oauthConfig(a.cfg).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		if retrieveErr, ok := errors.AsType[*oauth2.RetrieveError](err); ok {
			oauthErr := oauthErrorFromRetrieve(retrieveErr)
			log.WithField("status", oauthErr.StatusCode).Warnf("token endpoint rejected the exchange: %s", oauthErr.Code)
			return nil, NewAuthenticationError(ErrCodeExchangeFailed, oauthErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, NewAuthenticationError(ErrCodeExchangeFailed, ctxErr)
		}
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, fmt.Errorf("%w: %v", ErrMalformedTokenResponse, err))
	}

	tokens, err := tokenSetFromOAuth2(tok)
	if err != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, err)
	}
	log.Debug("Token exchange successful")
	return tokens, nil
}

// oauthErrorFromRetrieve prefers the fields x/oauth2 already parsed, then the JSON body,
// then the raw body text.
func oauthErrorFromRetrieve(retrieveErr *oauth2.RetrieveError) *OAuthError {
	status := 0
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}

	code := retrieveErr.ErrorCode
	description := retrieveErr.ErrorDescription
	if gjson.ValidBytes(retrieveErr.Body) {
		if code == "" {
			code = gjson.GetBytes(retrieveErr.Body, "error").String()
		}
		if description == "" {
			description = gjson.GetBytes(retrieveErr.Body, "error_description").String()
		}
	}
	if code == "" {
		code = "http_" + strconv.Itoa(status)
	}
	if description == "" {
		description = strings.TrimSpace(string(retrieveErr.Body))
	}
	return NewOAuthError(code, description, status)
}

func tokenSetFromOAuth2(tok *oauth2.Token) (*TokenSet, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token is missing", ErrMalformedTokenResponse)
	}
	expiresIn, ok := numericExtra(tok.Extra("expires_in"))
	if !ok {
		return nil, fmt.Errorf("%w: expires_in is missing", ErrMalformedTokenResponse)
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	scope, _ := tok.Extra("scope").(string)

	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
		TokenType:    tokenType,
		Scope:        scope,
	}, nil
}

func numericExtra(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
