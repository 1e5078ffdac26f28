package store

import (
	"context"

	"github.com/antman-dev/oauth-precommit/internal/config"
	log "github.com/sirupsen/logrus"
)

// OpenMirrors builds every configured mirror. A mirror that cannot be reached is logged and
// skipped so the local store keeps working.
func OpenMirrors(ctx context.Context, cfg config.MirrorConfig) []Mirror {
	var mirrors []Mirror
	if cfg.Postgres.Enabled() {
		pg, err := NewPostgresMirror(ctx, cfg.Postgres)
		if err != nil {
			log.WithField("mirror", "postgres").Warnf("token mirror disabled: %v", err)
		} else {
			mirrors = append(mirrors, pg)
		}
	}
	if cfg.Object.Enabled() {
		obj, err := NewObjectMirror(cfg.Object)
		if err != nil {
			log.WithField("mirror", "object").Warnf("token mirror disabled: %v", err)
		} else {
			mirrors = append(mirrors, obj)
		}
	}
	return mirrors
}
