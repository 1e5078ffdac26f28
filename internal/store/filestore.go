// Package store persists the token record issued by a successful login. The local file is
// the source of truth; Postgres and S3-compatible mirrors optionally receive copies.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/antman-dev/oauth-precommit/internal/auth/auth0"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TokenFileName is the record file inside the token directory.
const TokenFileName = "tokens.json"

const (
	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

// StorageError reports a failed read or write of the token record.
type StorageError struct {
	Op   string
	Path string
	// Recoverable marks errors callers may treat as "no record", such as a corrupt file.
	Recoverable bool
	Err         error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("token store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, auth0.ErrStorage) match.
func (e *StorageError) Is(target error) bool {
	return target == auth0.ErrStorage
}

// IsRecoverable reports whether err is a StorageError callers may treat as an absent record.
func IsRecoverable(err error) bool {
	storageErr, ok := errors.AsType[*StorageError](err)
	return ok && storageErr.Recoverable
}

// Mirror receives copies of the token record. Pull returns (nil, nil) when it holds none.
type Mirror interface {
	Name() string
	Push(ctx context.Context, key string, data []byte) error
	Pull(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	Close() error
}

// FileTokenStore keeps a single token record at <dir>/tokens.json with owner-only permissions.
type FileTokenStore struct {
	dir     string
	key     string
	mirrors []Mirror
	mu      sync.Mutex
}

// NewFileTokenStore creates a store rooted at dir. appName namespaces the record in mirrors.
func NewFileTokenStore(dir, appName string, mirrors ...Mirror) *FileTokenStore {
	return &FileTokenStore{
		dir:     dir,
		key:     appName + "/" + TokenFileName,
		mirrors: mirrors,
	}
}

// Path returns the location of the token record.
func (s *FileTokenStore) Path() string {
	return filepath.Join(s.dir, TokenFileName)
}

// Save writes tokens with a fresh saved marker, replacing any previous record atomically.
// Mirror failures are logged and do not fail the save.
func (s *FileTokenStore) Save(ctx context.Context, tokens *auth0.TokenSet) (string, error) {
	if tokens == nil {
		return "", &StorageError{Op: "save", Path: s.Path(), Err: errors.New("token set is nil")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := auth0.StoredTokenRecord{TokenSet: *tokens, SavedMarker: uuid.NewString()}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", &StorageError{Op: "encode", Path: s.Path(), Err: err}
	}
	if err = s.writeFile(data); err != nil {
		return "", err
	}

	for _, m := range s.mirrors {
		if errPush := m.Push(ctx, s.key, data); errPush != nil {
			log.WithField("mirror", m.Name()).Warnf("token mirror update failed: %v", errPush)
		}
	}
	return s.Path(), nil
}

// Load returns the stored record, or (nil, nil) when none exists. When the local file is
// absent the first mirror holding a record restores it. A corrupt file yields a
// recoverable StorageError.
func (s *FileTokenStore) Load(ctx context.Context) (*auth0.StoredTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	switch {
	case err == nil:
		return s.decode(data)
	case errors.Is(err, fs.ErrNotExist):
		return s.restoreFromMirrors(ctx)
	default:
		return nil, &StorageError{Op: "read", Path: s.Path(), Err: err}
	}
}

// Clear removes the record locally and from every mirror. A missing record is not an error.
func (s *FileTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "remove", Path: s.Path(), Err: err}
	}
	for _, m := range s.mirrors {
		if errRemove := m.Remove(ctx, s.key); errRemove != nil {
			log.WithField("mirror", m.Name()).Warnf("token mirror removal failed: %v", errRemove)
		}
	}
	return nil
}

// Close releases mirror connections.
func (s *FileTokenStore) Close() error {
	var errs []error
	for _, m := range s.mirrors {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *FileTokenStore) decode(data []byte) (*auth0.StoredTokenRecord, error) {
	var record auth0.StoredTokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &StorageError{Op: "decode", Path: s.Path(), Recoverable: true, Err: err}
	}
	if record.AccessToken == "" {
		return nil, &StorageError{Op: "decode", Path: s.Path(), Recoverable: true, Err: errors.New("access_token is missing")}
	}
	return &record, nil
}

func (s *FileTokenStore) restoreFromMirrors(ctx context.Context) (*auth0.StoredTokenRecord, error) {
	for _, m := range s.mirrors {
		data, err := m.Pull(ctx, s.key)
		if err != nil {
			log.WithField("mirror", m.Name()).Warnf("token mirror read failed: %v", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		record, err := s.decode(data)
		if err != nil {
			log.WithField("mirror", m.Name()).Warnf("ignoring unreadable mirrored token record: %v", err)
			continue
		}
		if err = s.writeFile(data); err != nil {
			return nil, err
		}
		log.WithField("path", s.Path()).Infof("restored token record from %s mirror", m.Name())
		return record, nil
	}
	return nil, nil
}

// writeFile replaces the record through a synced temp file in the same directory.
func (s *FileTokenStore) writeFile(data []byte) error {
	path := s.Path()
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return &StorageError{Op: "mkdir", Path: s.dir, Err: err}
	}
	if err := os.Chmod(s.dir, dirMode); err != nil {
		return &StorageError{Op: "chmod", Path: s.dir, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".tokens-*.json")
	if err != nil {
		return &StorageError{Op: "create", Path: s.dir, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err = tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return &StorageError{Op: "chmod", Path: tmpName, Err: err}
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &StorageError{Op: "sync", Path: tmpName, Err: err}
	}
	if err = tmp.Close(); err != nil {
		cleanup()
		return &StorageError{Op: "close", Path: tmpName, Err: err}
	}
	if err = os.Rename(tmpName, path); err != nil {
		cleanup()
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	if err = os.Chmod(path, fileMode); err != nil {
		return &StorageError{Op: "chmod", Path: path, Err: err}
	}
	return nil
}
