package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
	"github.com/nkiryanov/storefront/internal/repository"
)

// Backend calls the session needs
type authClient interface {
	CurrentUser(ctx context.Context) (models.User, error)
	RefreshTokens(ctx context.Context) (models.TokenPair, error)
}

// Service owns the session of one profile: stored token pair and cached user.
// The cached user is advisory. Pages may use it to decide what to show but
// never to grant access
type Service struct {
	tokens repository.TokenStore
	client authClient
	logger logger.Logger

	// Clock. Replaced in tests
	now func() time.Time

	mu   sync.RWMutex
	user *models.User
}

func NewService(tokens repository.TokenStore, client authClient, l logger.Logger) (*Service, error) {
	if tokens == nil || client == nil {
		return nil, errors.New("session service requires token store and auth client")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		tokens: tokens,
		client: client,
		logger: l.With("service", "session"),
		now:    time.Now,
	}, nil
}

// User returns cached user if any
func (s *Service) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Refresh fetches current user from backend and caches it.
// If the session is missing or rejected the cached user is dropped
func (s *Service) Refresh(ctx context.Context) (models.User, error) {
	user, err := s.client.CurrentUser(ctx)
	switch {
	case errors.Is(err, apperrors.ErrNoSession), errors.Is(err, apperrors.ErrUnauthorized):
		s.setUser(nil)
		return user, err
	case err != nil:
		return user, fmt.Errorf("failed to refresh session: %w", err)
	}

	s.setUser(&user)
	s.logger.Debug("Session refreshed", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Renew exchanges refresh token for a new pair if access token is expired or about to.
// Opaque tokens without readable exp are left as is. Returns whether tokens were rotated
func (s *Service) Renew(ctx context.Context) (bool, error) {
	pair, err := s.tokens.Get(ctx)
	if err != nil {
		return false, err
	}

	exp, err := accessExpiry(pair.AccessToken)
	if err != nil {
		s.logger.Debug("Access token expiry unknown, renewal skipped", "error", err)
		return false, nil
	}
	if !needsRenewal(exp, s.now()) {
		return false, nil
	}

	rotated, err := s.client.RefreshTokens(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.logger.Info("Refresh token rejected, session dropped")
			if clearErr := s.Logout(ctx); clearErr != nil {
				return false, errors.Join(err, clearErr)
			}
		}
		return false, fmt.Errorf("failed to renew tokens: %w", err)
	}

	if err := s.tokens.Set(ctx, rotated); err != nil {
		return false, fmt.Errorf("failed to store renewed tokens: %w", err)
	}

	s.logger.Info("Session tokens renewed", "expired_at", exp)
	return true, nil
}

// Bootstrap restores session on start: renews tokens if needed and loads user
func (s *Service) Bootstrap(ctx context.Context) (models.User, error) {
	if _, err := s.Renew(ctx); err != nil {
		return models.User{}, err
	}
	return s.Refresh(ctx)
}

// Logout forgets tokens and cached user
func (s *Service) Logout(ctx context.Context) error {
	s.setUser(nil)

	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session tokens: %w", err)
	}
	return nil
}

func (s *Service) setUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}
