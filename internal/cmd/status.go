package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/store"
	log "github.com/sirupsen/logrus"
)

// ErrNotLoggedIn is returned by DoStatus when no usable token record exists.
var ErrNotLoggedIn = &ExitError{Code: 1, Err: errors.New("not logged in")}

// DoStatus reports whether a token record is stored, without printing any token value.
func DoStatus(ctx context.Context, cfg *config.Config, out io.Writer) error {
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

	record, err := tokenStore.Load(ctx)
	if err != nil {
		if !store.IsRecoverable(err) {
			r.fail(err.Error())
			return &ExitError{Code: 1, Err: err}
		}
		log.Warnf("stored token record is unreadable: %v", err)
		r.warn("The stored token file is unreadable. Run login again.")
		return ErrNotLoggedIn
	}
	if record == nil {
		r.warn("Not logged in.")
		return ErrNotLoggedIn
	}

	r.success("Logged in.")
	r.field("Token file", tokenStore.Path())
	r.field("Token type", record.TokenType)
	if record.Scope != "" {
		r.field("Scope", record.Scope)
	}
	r.field("Expires in", strconv.FormatInt(record.ExpiresIn, 10)+"s at issue time")
	if record.RefreshToken != "" {
		r.field("Refresh token", "stored")
	} else {
		r.field("Refresh token", "none")
	}
	r.field("Saved marker", record.SavedMarker)
	return nil
}
