package cmd

import (
	"context"
	"fmt"

	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/store"
	"github.com/antman-dev/oauth-precommit/internal/util"
	sdkAuth "github.com/antman-dev/oauth-precommit/sdk/auth"
)

// openTokenStore resolves the token directory and attaches every configured mirror.
// Callers must Close the returned store.
func openTokenStore(ctx context.Context, cfg *config.Config) (*store.FileTokenStore, error) {
	dir, err := util.ResolveTokenDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve token directory: %w", err)
	}
	mirrors := store.OpenMirrors(ctx, cfg.Mirrors)
	return store.NewFileTokenStore(dir, cfg.AppName, mirrors...), nil
}

// newAuthenticator wires the Auth0 login flow to the token store.
func newAuthenticator(cfg *config.Config, tokenStore sdkAuth.TokenStore) sdkAuth.Authenticator {
	return sdkAuth.NewAuth0Authenticator(cfg, tokenStore)
}
