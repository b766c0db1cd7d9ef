package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/models"
	"github.com/nkiryanov/storefront/internal/repository/memory"
)

type fakeClient struct {
	user    models.User
	userErr error

	rotated    models.TokenPair
	refreshErr error

	refreshCalls int
}

func (c *fakeClient) CurrentUser(context.Context) (models.User, error) {
	return c.user, c.userErr
}

func (c *fakeClient) RefreshTokens(context.Context) (models.TokenPair, error) {
	c.refreshCalls++
	return c.rotated, c.refreshErr
}

func mustAccessToken(t *testing.T, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("backend-only-secret"))
	require.NoError(t, err)
	return signed
}

func newTestService(t *testing.T, client *fakeClient, now time.Time) (*Service, *memory.Store) {
	t.Helper()

	store := memory.New()
	s, err := NewService(store, client, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	return s, store
}

func TestService_Refresh(t *testing.T) {
	t.Run("caches user", func(t *testing.T) {
		client := &fakeClient{user: models.User{ID: "7", FullName: "Alice", Role: models.RoleAdmin}}
		s, _ := newTestService(t, client, time.Now())

		_, ok := s.User()
		require.False(t, ok)

		user, err := s.Refresh(t.Context())

		require.NoError(t, err)
		require.Equal(t, "Alice", user.FullName)
		cached, ok := s.User()
		require.True(t, ok)
		require.Equal(t, user, cached)
	})

	t.Run("unauthorized drops cached user", func(t *testing.T) {
		client := &fakeClient{user: models.User{FullName: "Alice"}}
		s, _ := newTestService(t, client, time.Now())
		_, err := s.Refresh(t.Context())
		require.NoError(t, err)

		client.userErr = apperrors.ErrUnauthorized
		_, err = s.Refresh(t.Context())

		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		_, ok := s.User()
		require.False(t, ok)
	})

	t.Run("network error keeps cached user", func(t *testing.T) {
		client := &fakeClient{user: models.User{FullName: "Alice"}}
		s, _ := newTestService(t, client, time.Now())
		_, err := s.Refresh(t.Context())
		require.NoError(t, err)

		client.userErr = &apperrors.NetworkError{Op: "current user", Err: errors.New("refused")}
		_, err = s.Refresh(t.Context())

		require.ErrorIs(t, err, apperrors.ErrNetwork)
		_, ok := s.User()
		require.True(t, ok)
	})
}

func TestService_Renew(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh token kept", func(t *testing.T) {
		client := &fakeClient{}
		s, store := newTestService(t, client, now)
		pair := models.TokenPair{AccessToken: mustAccessToken(t, now.Add(10*time.Minute)), RefreshToken: "r1"}
		require.NoError(t, store.Set(t.Context(), pair))

		renewed, err := s.Renew(t.Context())

		require.NoError(t, err)
		require.False(t, renewed)
		require.Zero(t, client.refreshCalls)
	})

	t.Run("token within skew renewed", func(t *testing.T) {
		client := &fakeClient{rotated: models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
		s, store := newTestService(t, client, now)
		pair := models.TokenPair{AccessToken: mustAccessToken(t, now.Add(ExpirySkew)), RefreshToken: "r1"}
		require.NoError(t, store.Set(t.Context(), pair))

		renewed, err := s.Renew(t.Context())

		require.NoError(t, err)
		require.True(t, renewed)
		got, err := store.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, client.rotated, got)
	})

	t.Run("expired token renewed", func(t *testing.T) {
		client := &fakeClient{rotated: models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
		s, store := newTestService(t, client, now)
		require.NoError(t, store.Set(t.Context(), models.TokenPair{AccessToken: mustAccessToken(t, now.Add(-time.Hour)), RefreshToken: "r1"}))

		renewed, err := s.Renew(t.Context())

		require.NoError(t, err)
		require.True(t, renewed)
		require.Equal(t, 1, client.refreshCalls)
	})

	t.Run("opaque token skipped", func(t *testing.T) {
		client := &fakeClient{}
		s, store := newTestService(t, client, now)
		require.NoError(t, store.Set(t.Context(), models.TokenPair{AccessToken: "opaque", RefreshToken: "r1"}))

		renewed, err := s.Renew(t.Context())

		require.NoError(t, err)
		require.False(t, renewed)
		require.Zero(t, client.refreshCalls)
	})

	t.Run("no session", func(t *testing.T) {
		s, _ := newTestService(t, &fakeClient{}, now)

		_, err := s.Renew(t.Context())

		require.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("rejected refresh clears session", func(t *testing.T) {
		client := &fakeClient{refreshErr: apperrors.ErrUnauthorized}
		s, store := newTestService(t, client, now)
		require.NoError(t, store.Set(t.Context(), models.TokenPair{AccessToken: mustAccessToken(t, now.Add(-time.Minute)), RefreshToken: "r1"}))

		renewed, err := s.Renew(t.Context())

		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		require.False(t, renewed)
		_, err = store.Get(t.Context())
		require.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("unreachable backend keeps session", func(t *testing.T) {
		client := &fakeClient{refreshErr: &apperrors.NetworkError{Op: "refresh tokens", Err: errors.New("refused")}}
		s, store := newTestService(t, client, now)
		require.NoError(t, store.Set(t.Context(), models.TokenPair{AccessToken: mustAccessToken(t, now.Add(-time.Minute)), RefreshToken: "r1"}))

		_, err := s.Renew(t.Context())

		require.ErrorIs(t, err, apperrors.ErrNetwork)
		got, err := store.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, "r1", got.RefreshToken)
	})
}

func TestService_Bootstrap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{
		user:    models.User{FullName: "Bob", Role: models.RoleCustomer},
		rotated: models.TokenPair{AccessToken: "a2", RefreshToken: "r2"},
	}
	s, store := newTestService(t, client, now)
	require.NoError(t, store.Set(t.Context(), models.TokenPair{AccessToken: mustAccessToken(t, now.Add(-time.Minute)), RefreshToken: "r1"}))

	user, err := s.Bootstrap(t.Context())

	require.NoError(t, err)
	assert.Equal(t, "Bob", user.FullName)
	assert.Equal(t, 1, client.refreshCalls)
}

func TestService_Logout(t *testing.T) {
	client := &fakeClient{user: models.User{FullName: "Alice"}}
	s, store := newTestService(t, client, time.Now())
	require.NoError(t, store.Set(t.Context(), models.TokenPair{AccessToken: "a", RefreshToken: "r"}))
	_, err := s.Refresh(t.Context())
	require.NoError(t, err)

	err = s.Logout(t.Context())

	require.NoError(t, err)
	_, ok := s.User()
	require.False(t, ok)
	_, err = store.Get(t.Context())
	require.ErrorIs(t, err, apperrors.ErrNoSession)
}

func Test_accessExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("signature not checked", func(t *testing.T) {
		got, err := accessExpiry(mustAccessToken(t, exp))

		require.NoError(t, err)
		require.True(t, exp.Equal(got))
	})

	t.Run("no exp", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("k"))
		require.NoError(t, err)

		_, err = accessExpiry(token)

		require.ErrorIs(t, err, errNoExpiry)
	})

	t.Run("not a jwt", func(t *testing.T) {
		_, err := accessExpiry("opaque-token")

		require.Error(t, err)
	})
}
