package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/models"
	"github.com/nkiryanov/storefront/internal/repository"
)

const sessionFile = "session.json"

// Store persists the token pair in the profile directory, so the session
// survives restarts of the client. Profiles never share a file.
type Store struct {
	// Guards against concurrent writers inside the process
	// Between processes rename(2) keeps the file consistent, last write wins
	mu   sync.Mutex
	path string
}

// New creates a store for profile inside baseDir. Directory created on demand
func New(baseDir string, profile string) (*Store, error) {
	if profile == "" {
		return nil, errors.New("profile must not be empty")
	}
	if filepath.Base(profile) != profile {
		return nil, fmt.Errorf("profile %q must not contain path separators", profile)
	}

	return &Store{path: filepath.Join(baseDir, profile, sessionFile)}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Set(_ context.Context, pair models.TokenPair) error {
	if !pair.IsComplete() {
		return apperrors.ErrPartialTokenPair
	}

	data, err := json.Marshal(map[string]string{
		repository.AccessTokenKey:  pair.AccessToken,
		repository.RefreshTokenKey: pair.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	// Write to temp file and rename: readers see the old pair or the new one
	tmp, err := os.CreateTemp(dir, sessionFile+".*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}

	return nil
}

func (s *Store) Get(_ context.Context) (models.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return models.TokenPair{}, apperrors.ErrNoSession
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("read session: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return models.TokenPair{}, fmt.Errorf("decode session: %w", err)
	}

	pair := models.TokenPair{
		AccessToken:  values[repository.AccessTokenKey],
		RefreshToken: values[repository.RefreshTokenKey],
	}
	if !pair.IsComplete() {
		return models.TokenPair{}, apperrors.ErrNoSession
	}

	return pair, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}

	return nil
}
