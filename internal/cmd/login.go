package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/antman-dev/oauth-precommit/internal/auth/auth0"
	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/misc"
	sdkAuth "github.com/antman-dev/oauth-precommit/sdk/auth"
	log "github.com/sirupsen/logrus"
)

// LoginOptions contains options for the login command.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CallbackPort overrides the local OAuth callback port when set (>0).
	CallbackPort int

	// Timeout overrides the callback wait when set (>0).
	Timeout time.Duration

	// Manual offers to paste the callback URL when the redirect cannot reach this machine.
	Manual bool

	// CopyURL copies the authorization URL to the clipboard.
	CopyURL bool

	// Prompt allows the caller to provide interactive input; defaults to stdin.
	Prompt func(ctx context.Context, prompt string) (string, error)

	// Out receives user-facing output; defaults to stdout.
	Out io.Writer
}

// DoLogin runs the interactive Auth0 login and saves the resulting tokens.
// Failures are shown to the user and returned as *ExitError; a busy callback port exits with 13.
func DoLogin(ctx context.Context, cfg *config.Config, options *LoginOptions) error {
	if options == nil {
		options = &LoginOptions{}
	}
	out := options.Out
	if out == nil {
		out = os.Stdout
	}
	r := newRenderer(out)

	cfg = withLoginOverrides(cfg, options)
	if err := cfg.Validate(); err != nil {
		authErr := auth0.NewAuthenticationError(auth0.ErrConfiguration, err)
		r.fail(auth0.GetUserFriendlyMessage(authErr))
		return &ExitError{Code: 1, Err: authErr}
	}

	tokenStore, err := openTokenStore(ctx, cfg)
	if err != nil {
		r.fail(err.Error())
		return &ExitError{Code: 1, Err: err}
	}
	defer func() {
		if errClose := tokenStore.Close(); errClose != nil {
			log.Debugf("token store close error: %v", errClose)
		}
	}()

	authOpts := &sdkAuth.LoginOptions{
		NoBrowser:    options.NoBrowser,
		CallbackPort: options.CallbackPort,
		Timeout:      options.Timeout,
		CopyURL:      options.CopyURL,
		Out:          out,
	}
	if options.Manual {
		authOpts.Prompt = options.Prompt
		if authOpts.Prompt == nil {
			authOpts.Prompt = stdinLines().prompt(out)
		}
	}

	misc.LogCredentialSeparator()
	res := newAuthenticator(cfg, tokenStore).Login(ctx, authOpts)
	if !res.OK() {
		r.fail(auth0.GetUserFriendlyMessage(res.Err))
		log.Debugf("login failed in state %s: %v", res.State, res.Err)
		if errors.Is(res.Err, auth0.ErrPortInUse) {
			return &ExitError{Code: auth0.ErrPortInUse.Code, Err: res.Err}
		}
		return &ExitError{Code: 1, Err: res.Err}
	}

	misc.LogSavingCredentials(out, res.Path)
	r.success("Authentication successful!")
	return nil
}

// withLoginOverrides returns a copy of cfg with the command-line port and timeout applied.
func withLoginOverrides(cfg *config.Config, options *LoginOptions) *config.Config {
	if cfg == nil {
		return nil
	}
	effective := *cfg
	if options.CallbackPort > 0 {
		effective.Auth0.RedirectPort = options.CallbackPort
	}
	if options.Timeout > 0 {
		effective.CallbackTimeout = options.Timeout
	}
	return &effective
}

// stdinLines is shared by every login in the process so stdin has a single reader.
var stdinLines = sync.OnceValue(func() *lineReader { return newLineReader(os.Stdin) })

type lineResult struct {
	text string
	err  error
}

// lineReader reads lines from in on one goroutine, started by the first prompt.
// A prompt abandoned through its context leaves the pending line for the next prompt.
type lineReader struct {
	in    io.Reader
	start sync.Once
	lines chan lineResult
}

func newLineReader(in io.Reader) *lineReader {
	return &lineReader{in: in, lines: make(chan lineResult)}
}

func (l *lineReader) run() {
	reader := bufio.NewReader(l.in)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			l.lines <- lineResult{err: err}
			close(l.lines)
			return
		}
		l.lines <- lineResult{text: strings.TrimSpace(line)}
	}
}

// prompt writes the prompt to out and waits for the next line or for ctx to end.
func (l *lineReader) prompt(out io.Writer) func(context.Context, string) (string, error) {
	return func(ctx context.Context, prompt string) (string, error) {
		l.start.Do(func() { go l.run() })
		_, _ = fmt.Fprint(out, prompt)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-l.lines:
			if !ok {
				return "", io.EOF
			}
			return res.text, res.err
		}
	}
}
