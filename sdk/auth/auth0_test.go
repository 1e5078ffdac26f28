package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/antman-dev/oauth-precommit/internal/auth/auth0"
	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(port int) *config.Config {
	cfg := &config.Config{Auth0: config.Auth0Config{
		Domain:       "tenant.example.com",
		ClientID:     "c1",
		Audience:     "https://api.example.com",
		Scopes:       []string{"openid", "profile"},
		RedirectPort: port,
	}}
	cfg.ApplyDefaults()
	return cfg
}

type fakeExchanger struct {
	calls  atomic.Int32
	tokens *auth0.TokenSet
	err    error
}

func (f *fakeExchanger) ExchangeCodeForTokens(_ context.Context, verifier, code string) (*auth0.TokenSet, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

type fakeStore struct {
	saved *auth0.TokenSet
	err   error
}

func (f *fakeStore) Save(_ context.Context, tokens *auth0.TokenSet) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = tokens
	return "/tmp/tokens.json", nil
}

// hitCallback visits the loopback listener the way a browser would after the redirect.
func hitCallback(t *testing.T, port int, query url.Values) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?%s", port, query.Encode()))
	if err != nil {
		t.Errorf("callback request failed: %v", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func stateFromURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestLoginEndToEnd(t *testing.T) {
	var challenge atomic.Value
	tokenServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if auth0.GenerateChallenge(r.PostForm.Get("code_verifier")) != challenge.Load() || r.PostForm.Get("code") != "the-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"verifier mismatch"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":86400,"token_type":"Bearer","scope":"openid profile"}`))
	}))
	defer tokenServer.Close()

	port := freePort(t)
	cfg := testConfig(port)
	cfg.Auth0.Domain = strings.TrimPrefix(tokenServer.URL, "https://")

	tokenStore := store.NewFileTokenStore(t.TempDir(), "app")
	authenticator := NewAuth0Authenticator(cfg, tokenStore,
		WithExchanger(auth0.NewAuth0Auth(cfg, auth0.WithHTTPClient(tokenServer.Client()))))

	res := authenticator.Login(context.Background(), &LoginOptions{
		NoBrowser: true,
		Timeout:   10 * time.Second,
		Out:       io.Discard,
		OnAuthURL: func(authURL string) {
			u, err := url.Parse(authURL)
			if err != nil {
				t.Errorf("parse auth url: %v", err)
				return
			}
			challenge.Store(u.Query().Get("code_challenge"))
			go hitCallback(t, port, url.Values{"code": {"the-code"}, "state": {u.Query().Get("state")}})
		},
	})

	require.True(t, res.OK(), "login failed: %v", res.Err)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, "at", res.Tokens.AccessToken)
	assert.Equal(t, tokenStore.Path(), res.Path)

	record, err := tokenStore.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(86400), record.ExpiresIn)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err, "callback port must be released")
	_ = ln.Close()
}

func TestLoginTimeoutReleasesPort(t *testing.T) {
	port := freePort(t)
	exchanger := &fakeExchanger{}
	authenticator := NewAuth0Authenticator(testConfig(port), &fakeStore{}, WithExchanger(exchanger))

	start := time.Now()
	res := authenticator.Login(context.Background(), &LoginOptions{
		NoBrowser: true,
		Timeout:   time.Second,
		Out:       io.Discard,
	})

	assert.Equal(t, StateTimedOut, res.State)
	assert.ErrorIs(t, res.Err, auth0.ErrCallbackTimeout)
	assert.False(t, res.OK())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, exchanger.calls.Load())

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	_ = ln.Close()
}

func TestLoginCancelled(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authenticator := NewAuth0Authenticator(testConfig(port), &fakeStore{}, WithExchanger(&fakeExchanger{}))
	res := authenticator.Login(ctx, &LoginOptions{
		NoBrowser: true,
		Timeout:   30 * time.Second,
		Out:       io.Discard,
		OnAuthURL: func(string) {
			go func() {
				time.Sleep(50 * time.Millisecond)
				cancel()
			}()
		},
	})

	assert.Equal(t, StateCancelled, res.State)
	assert.ErrorIs(t, res.Err, auth0.ErrFlowCancelled)
}

func TestLoginProviderErrorSkipsExchange(t *testing.T) {
	port := freePort(t)
	exchanger := &fakeExchanger{}
	authenticator := NewAuth0Authenticator(testConfig(port), &fakeStore{}, WithExchanger(exchanger))

	res := authenticator.Login(context.Background(), &LoginOptions{
		NoBrowser: true,
		Timeout:   10 * time.Second,
		Out:       io.Discard,
		OnAuthURL: func(string) {
			go hitCallback(t, port, url.Values{"error": {"access_denied"}, "error_description": {"denied"}})
		},
	})

	assert.Equal(t, StateResolvedFailure, res.State)
	cbErr, ok := errors.AsType[*auth0.CallbackError](res.Err)
	require.True(t, ok)
	assert.Equal(t, auth0.ProviderError, cbErr.Kind)
	assert.Equal(t, "access_denied", cbErr.ProviderCode)
	assert.Zero(t, exchanger.calls.Load())
}

func TestLoginStateMismatch(t *testing.T) {
	port := freePort(t)
	exchanger := &fakeExchanger{}
	authenticator := NewAuth0Authenticator(testConfig(port), &fakeStore{}, WithExchanger(exchanger))

	res := authenticator.Login(context.Background(), &LoginOptions{
		NoBrowser: true,
		Timeout:   10 * time.Second,
		Out:       io.Discard,
		OnAuthURL: func(string) {
			go hitCallback(t, port, url.Values{"code": {"abc"}, "state": {"forged"}})
		},
	})

	assert.Equal(t, StateResolvedFailure, res.State)
	cbErr, ok := errors.AsType[*auth0.CallbackError](res.Err)
	require.True(t, ok)
	assert.Equal(t, auth0.StateMismatch, cbErr.Kind)
	assert.Zero(t, exchanger.calls.Load())
}

func TestLoginInvalidConfiguration(t *testing.T) {
	cfg := testConfig(freePort(t))
	cfg.Auth0.ClientID = ""
	authenticator := NewAuth0Authenticator(cfg, &fakeStore{}, WithExchanger(&fakeExchanger{}))

	res := authenticator.Login(context.Background(), &LoginOptions{NoBrowser: true, Out: io.Discard})
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, auth0.ErrConfiguration)
	assert.Contains(t, res.Err.Error(), "AUTH0_CLIENT_ID")

	res = NewAuth0Authenticator(nil, &fakeStore{}).Login(context.Background(), nil)
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, auth0.ErrConfiguration)
}

func TestLoginPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	called := false
	authenticator := NewAuth0Authenticator(testConfig(port), &fakeStore{}, WithExchanger(&fakeExchanger{}))
	res := authenticator.Login(context.Background(), &LoginOptions{
		NoBrowser: true,
		Out:       io.Discard,
		OnAuthURL: func(string) { called = true },
	})

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, auth0.ErrPortInUse)
	assert.False(t, called, "URL must not be presented when bind fails")
}

func TestLoginExchangeAndPersistFailures(t *testing.T) {
	tokens := &auth0.TokenSet{AccessToken: "at", ExpiresIn: 60, TokenType: "Bearer"}

	tests := []struct {
		name      string
		exchanger *fakeExchanger
		store     *fakeStore
		wantState FlowState
		wantErr   error
	}{
		{
			name:      "exchange rejected",
			exchanger: &fakeExchanger{err: auth0.NewAuthenticationError(auth0.ErrCodeExchangeFailed, auth0.NewOAuthError("invalid_grant", "", 403))},
			store:     &fakeStore{},
			wantState: StateExchangeFailed,
			wantErr:   auth0.ErrCodeExchangeFailed,
		},
		{
			name:      "persist failed",
			exchanger: &fakeExchanger{tokens: tokens},
			store:     &fakeStore{err: errors.New("disk full")},
			wantState: StatePersistFailed,
			wantErr:   auth0.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := freePort(t)
			authenticator := NewAuth0Authenticator(testConfig(port), tt.store, WithExchanger(tt.exchanger))
			res := authenticator.Login(context.Background(), &LoginOptions{
				NoBrowser: true,
				Timeout:   10 * time.Second,
				Out:       io.Discard,
				OnAuthURL: func(authURL string) {
					go hitCallback(t, port, url.Values{"code": {"abc"}, "state": {stateFromURL(t, authURL)}})
				},
			})
			assert.Equal(t, tt.wantState, res.State)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.Nil(t, res.Tokens)
			assert.Equal(t, int32(1), tt.exchanger.calls.Load())
		})
	}
}

func TestLoginManualPaste(t *testing.T) {
	port := freePort(t)
	exchanger := &fakeExchanger{tokens: &auth0.TokenSet{AccessToken: "at", ExpiresIn: 60, TokenType: "Bearer"}}
	tokenStore := &fakeStore{}
	authenticator := NewAuth0Authenticator(testConfig(port), tokenStore, WithExchanger(exchanger))

	stateCh := make(chan string, 1)
	res := authenticator.Login(context.Background(), &LoginOptions{
		NoBrowser:         true,
		Timeout:           10 * time.Second,
		Out:               io.Discard,
		ManualPromptDelay: 10 * time.Millisecond,
		OnAuthURL: func(authURL string) {
			stateCh <- stateFromURL(t, authURL)
		},
		Prompt: func(context.Context, string) (string, error) {
			state := <-stateCh
			return fmt.Sprintf("http://localhost:%d/callback?code=pasted&state=%s", port, state), nil
		},
	})

	require.True(t, res.OK(), "login failed: %v", res.Err)
	assert.Equal(t, int32(1), exchanger.calls.Load())
	assert.Same(t, exchanger.tokens, tokenStore.saved)
}

func TestLoginCancelsPendingPrompt(t *testing.T) {
	port := freePort(t)
	exchanger := &fakeExchanger{}
	authenticator := NewAuth0Authenticator(testConfig(port), &fakeStore{}, WithExchanger(exchanger))

	promptDone := make(chan error, 1)
	res := authenticator.Login(context.Background(), &LoginOptions{
		NoBrowser:         true,
		Timeout:           200 * time.Millisecond,
		Out:               io.Discard,
		ManualPromptDelay: 10 * time.Millisecond,
		Prompt: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			promptDone <- ctx.Err()
			return "", ctx.Err()
		},
	})
	assert.Equal(t, StateTimedOut, res.State)

	select {
	case err := <-promptDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("prompt still running after Login returned")
	}
	assert.Equal(t, int32(0), exchanger.calls.Load())
}

func TestFlowStateString(t *testing.T) {
	assert.Equal(t, "awaiting_callback", StateAwaitingCallback.String())
	assert.Equal(t, "persist_failed", StatePersistFailed.String())
	assert.True(t, StateTimedOut.Terminal())
	assert.False(t, StateExchanging.Terminal())
}
