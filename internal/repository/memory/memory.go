package memory

import (
	"context"
	"sync"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/models"
)

// Store keeps tokens for the process lifetime only
type Store struct {
	mu   sync.RWMutex
	pair models.TokenPair
}

func New() *Store {
	return &Store{}
}

func (s *Store) Set(_ context.Context, pair models.TokenPair) error {
	if !pair.IsComplete() {
		return apperrors.ErrPartialTokenPair
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair

	return nil
}

func (s *Store) Get(_ context.Context) (models.TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.pair.IsComplete() {
		return models.TokenPair{}, apperrors.ErrNoSession
	}
	return s.pair, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = models.TokenPair{}

	return nil
}
