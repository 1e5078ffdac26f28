package cmd

import (
	"context"
	"io"
	"os"

	"github.com/antman-dev/oauth-precommit/internal/config"
)

// DoLogout removes the stored token record locally and from configured mirrors.
func DoLogout(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	r := newRenderer(out)

	tokenStore, err := openTokenStore(ctx, cfg)
	if err != nil {
		r.fail(err.Error())
		return &ExitError{Code: 1, Err: err}
	}
	defer func() { _ = tokenStore.Close() }()

	if err = tokenStore.Clear(ctx); err != nil {
		r.fail(err.Error())
		return &ExitError{Code: 1, Err: err}
	}
	r.success("Logged out.")
	return nil
}
