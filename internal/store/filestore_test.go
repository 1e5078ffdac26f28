package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/antman-dev/oauth-precommit/internal/auth/auth0"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMirror struct {
	mu      sync.Mutex
	objects map[string][]byte
	failAll bool
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{objects: make(map[string][]byte)}
}

func (m *memoryMirror) Name() string { return "memory" }
func (m *memoryMirror) Close() error { return nil }

func (m *memoryMirror) Push(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("mirror offline")
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryMirror) Pull(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("mirror offline")
	}
	return m.objects[key], nil
}

func (m *memoryMirror) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("mirror offline")
	}
	delete(m.objects, key)
	return nil
}

func sampleTokens() *auth0.TokenSet {
	return &auth0.TokenSet{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresIn:    3600,
		TokenType:    "Bearer",
		Scope:        "openid profile",
	}
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg", "app")
	s := NewFileTokenStore(dir, "app")
	ctx := context.Background()

	path, err := s.Save(ctx, sampleTokens())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, TokenFileName), path)

	record, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, *sampleTokens(), record.TokenSet)
	assert.NotEmpty(t, record.SavedMarker)

	if runtime.GOOS != "windows" {
		fileInfo, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fileInfo.Mode().Perm())

		dirInfo, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileTokenStoreSaveRegeneratesMarker(t *testing.T) {
	s := NewFileTokenStore(t.TempDir(), "app")
	ctx := context.Background()

	_, err := s.Save(ctx, sampleTokens())
	require.NoError(t, err)
	first, err := s.Load(ctx)
	require.NoError(t, err)

	_, err = s.Save(ctx, sampleTokens())
	require.NoError(t, err)
	second, err := s.Load(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.SavedMarker, second.SavedMarker)
}

func TestFileTokenStoreTightensPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TokenFileName), []byte("{}"), 0o644))

	s := NewFileTokenStore(dir, "app")
	path, err := s.Save(context.Background(), sampleTokens())
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	info, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestFileTokenStoreClear(t *testing.T) {
	s := NewFileTokenStore(t.TempDir(), "app")
	ctx := context.Background()

	require.NoError(t, s.Clear(ctx))
	record, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, record)

	_, err = s.Save(ctx, sampleTokens())
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	record, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFileTokenStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TokenFileName), []byte("{not json"), 0o600))

	s := NewFileTokenStore(dir, "app")
	record, err := s.Load(context.Background())
	assert.Nil(t, record)
	require.Error(t, err)
	assert.True(t, IsRecoverable(err))
	assert.ErrorIs(t, err, auth0.ErrStorage)
}

func TestFileTokenStoreSaveNil(t *testing.T) {
	s := NewFileTokenStore(t.TempDir(), "app")
	_, err := s.Save(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, IsRecoverable(err))
}

func TestFileTokenStoreMirrors(t *testing.T) {
	ctx := context.Background()
	mirror := newMemoryMirror()
	dir := t.TempDir()
	s := NewFileTokenStore(dir, "app", mirror)

	_, err := s.Save(ctx, sampleTokens())
	require.NoError(t, err)
	require.Contains(t, mirror.objects, "app/tokens.json")

	require.NoError(t, os.Remove(s.Path()))

	record, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "at", record.AccessToken)
	assert.FileExists(t, s.Path())

	require.NoError(t, s.Clear(ctx))
	assert.NotContains(t, mirror.objects, "app/tokens.json")
}

func TestFileTokenStoreMirrorFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	mirror := newMemoryMirror()
	mirror.failAll = true
	s := NewFileTokenStore(t.TempDir(), "app", mirror)

	_, err := s.Save(ctx, sampleTokens())
	require.NoError(t, err)

	record, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)

	require.NoError(t, s.Clear(ctx))
	record, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, record)
}
