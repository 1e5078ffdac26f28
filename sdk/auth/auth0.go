package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/antman-dev/oauth-precommit/internal/auth/auth0"
	"github.com/antman-dev/oauth-precommit/internal/browser"
	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/misc"
	"github.com/antman-dev/oauth-precommit/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	defaultManualPromptDelay = 15 * time.Second
	serverStopTimeout        = 2 * time.Second
)

// Auth0Authenticator implements the Authorization Code + PKCE login against Auth0.
type Auth0Authenticator struct {
	cfg       *config.Config
	store     TokenStore
	exchanger TokenExchanger
}

// AuthenticatorOption customizes an Auth0Authenticator.
type AuthenticatorOption func(*Auth0Authenticator)

// WithExchanger replaces the token exchange client.
func WithExchanger(exchanger TokenExchanger) AuthenticatorOption {
	return func(a *Auth0Authenticator) {
		a.exchanger = exchanger
	}
}

// NewAuth0Authenticator constructs an authenticator that saves tokens into store.
func NewAuth0Authenticator(cfg *config.Config, store TokenStore, opts ...AuthenticatorOption) *Auth0Authenticator {
	a := &Auth0Authenticator{cfg: cfg, store: store}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type manualInput struct {
	text string
	err  error
}

// Login runs one flow attempt. Configuration is checked before any listener or network
// resource is acquired, the listener is always released before the token exchange, and
// every outcome, including cancellation through ctx, is reported in the returned result.
func (a *Auth0Authenticator) Login(ctx context.Context, opts *LoginOptions) *LoginResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &LoginOptions{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	res := &LoginResult{State: StateInit}

	if a.cfg == nil {
		return a.finish(res, StateFailed, auth0.NewAuthenticationError(auth0.ErrConfiguration, errors.New("configuration is required")))
	}
	cfg := *a.cfg
	cfg.Auth0.Scopes = append([]string(nil), a.cfg.Auth0.Scopes...)
	if opts.CallbackPort > 0 {
		cfg.Auth0.RedirectPort = opts.CallbackPort
	}
	if opts.Timeout > 0 {
		cfg.CallbackTimeout = opts.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return a.finish(res, StateFailed, auth0.NewAuthenticationError(auth0.ErrConfiguration, err))
	}
	if a.store == nil {
		return a.finish(res, StateFailed, auth0.NewAuthenticationError(auth0.ErrConfiguration, errors.New("token store is required")))
	}
	exchanger := a.exchanger
	if exchanger == nil {
		exchanger = auth0.NewAuth0Auth(&cfg)
	}

	params, err := auth0.GenerateParameters()
	if err != nil {
		return a.finish(res, StateFailed, fmt.Errorf("pkce generation failed: %w", err))
	}

	port := cfg.Auth0.RedirectPort
	oauthServer := auth0.NewOAuthServer(port, params.State)
	if err = oauthServer.Start(); err != nil {
		return a.finish(res, StateFailed, err)
	}
	stopServer := sync.OnceFunc(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), serverStopTimeout)
		defer cancel()
		if errStop := oauthServer.Stop(stopCtx); errStop != nil {
			log.Warnf("oauth callback server stop error: %v", errStop)
		}
	})
	defer stopServer()

	authURL := auth0.BuildAuthorizationURL(cfg.Auth0, params)
	a.presentURL(out, opts, authURL, port)

	res.State = StateAwaitingCallback
	log.WithField("state", res.State.String()).WithField("port", port).Debug("waiting for OAuth callback")

	waitCtx, cancelWait := context.WithTimeout(ctx, cfg.CallbackTimeout)
	defer cancelWait()

	var manualPromptC <-chan time.Time
	if opts.Prompt != nil {
		delay := opts.ManualPromptDelay
		if delay <= 0 {
			delay = defaultManualPromptDelay
		}
		manualPromptTimer := time.NewTimer(delay)
		defer manualPromptTimer.Stop()
		manualPromptC = manualPromptTimer.C
	}
	promptCtx, cancelPrompt := context.WithCancel(ctx)
	defer cancelPrompt()
	manualCh := make(chan manualInput, 1)
	askManual := func() {
		go func() {
			text, errPrompt := opts.Prompt(promptCtx, "Paste the callback URL (or press Enter to keep waiting): ")
			manualCh <- manualInput{text: text, err: errPrompt}
		}()
	}

	var result auth0.CallbackResult
waitForCallback:
	for {
		select {
		case result = <-oauthServer.Result():
			break waitForCallback
		case errServe := <-oauthServer.Err():
			stopServer()
			return a.finish(res, StateFailed, auth0.NewAuthenticationError(auth0.ErrServerStartFailed, errServe))
		case <-manualPromptC:
			manualPromptC = nil
			askManual()
		case in := <-manualCh:
			if in.err != nil {
				log.Debugf("manual callback prompt closed: %v", in.err)
				continue
			}
			values, errParse := misc.ParseCallbackURL(in.text)
			if errParse != nil {
				_, _ = fmt.Fprintf(out, "Could not read the callback URL: %v\n", errParse)
				askManual()
				continue
			}
			if values == nil {
				continue
			}
			result = auth0.ValidateCallback(params.State, values)
			break waitForCallback
		case <-waitCtx.Done():
			stopServer()
			if ctx.Err() != nil {
				return a.finish(res, StateCancelled, auth0.NewAuthenticationError(auth0.ErrFlowCancelled, ctx.Err()))
			}
			return a.finish(res, StateTimedOut, auth0.NewAuthenticationError(auth0.ErrCallbackTimeout, waitCtx.Err()))
		}
	}
	stopServer()

	if !result.OK() {
		return a.finish(res, StateResolvedFailure, result.Err)
	}
	res.State = StateResolvedSuccess
	log.WithField("state", res.State.String()).Debug("authorization code received")

	res.State = StateExchanging
	tokens, err := exchanger.ExchangeCodeForTokens(ctx, params.CodeVerifier, result.Code)
	if err != nil {
		return a.finish(res, StateExchangeFailed, err)
	}

	path, err := a.store.Save(ctx, tokens)
	if err != nil {
		return a.finish(res, StatePersistFailed, auth0.NewAuthenticationError(auth0.ErrStorage, err))
	}

	res.Tokens = tokens
	res.Path = path
	return a.finish(res, StateComplete, nil)
}

// presentURL shows the authorization URL and, unless disabled, opens it in a browser.
// The URL is always printed so the flow can be completed from another device.
func (a *Auth0Authenticator) presentURL(out io.Writer, opts *LoginOptions, authURL string, port int) {
	if opts.OnAuthURL != nil {
		opts.OnAuthURL(authURL)
	}
	if opts.CopyURL {
		if err := browser.CopyToClipboard(authURL); err != nil {
			log.Debugf("clipboard copy failed: %v", err)
		} else {
			_, _ = fmt.Fprintln(out, "Authorization URL copied to clipboard")
		}
	}

	headless := opts.NoBrowser
	if !opts.NoBrowser {
		_, _ = fmt.Fprintln(out, "Opening browser for authentication")
		if !browser.IsAvailable() {
			log.Warn("No browser available; please open the URL manually")
			headless = true
		} else if err := browser.OpenURL(authURL); err != nil {
			log.Warnf("Failed to open browser automatically: %v", err)
			headless = true
		}
	}
	if headless && util.IsRemoteSession() {
		util.PrintSSHTunnelInstructions(out, port)
	}
	_, _ = fmt.Fprintf(out, "Visit the following URL to continue authentication:\n%s\n", authURL)
	_, _ = fmt.Fprintln(out, "Waiting for authentication callback...")
}

func (a *Auth0Authenticator) finish(res *LoginResult, state FlowState, err error) *LoginResult {
	res.State = state
	res.Err = err
	entry := log.WithField("state", state.String())
	if err != nil {
		entry.WithField("error", err.Error()).Warn("login attempt ended")
	} else {
		entry.Debug("login attempt complete")
	}
	return res
}
