package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/models"
	"github.com/nkiryanov/storefront/internal/repository"
	"github.com/nkiryanov/storefront/internal/repository/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.TokenStore {
		s, err := New(t.TempDir(), "default")
		require.NoError(t, err)
		return s
	})
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	pair := models.TokenPair{AccessToken: "A", RefreshToken: "B"}

	t.Run("survives new store instance", func(t *testing.T) {
		first, err := New(dir, "alice")
		require.NoError(t, err)
		require.NoError(t, first.Set(t.Context(), pair))

		second, err := New(dir, "alice")
		require.NoError(t, err)
		got, err := second.Get(t.Context())

		require.NoError(t, err)
		require.Equal(t, pair, got)
	})

	t.Run("profiles are isolated", func(t *testing.T) {
		other, err := New(dir, "bob")
		require.NoError(t, err)

		_, err = other.Get(t.Context())

		require.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("written under fixed keys", func(t *testing.T) {
		s, err := New(dir, "alice")
		require.NoError(t, err)

		data, err := os.ReadFile(s.Path())
		require.NoError(t, err)

		require.JSONEq(t, `{"access_token": "A", "refresh_token": "B"}`, string(data))
	})

	t.Run("file with one token is no session", func(t *testing.T) {
		s, err := New(dir, "carol")
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
		data, err := json.Marshal(map[string]string{"access_token": "A"})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.Path(), data, 0o600))

		_, err = s.Get(t.Context())

		require.ErrorIs(t, err, apperrors.ErrNoSession)
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		profile string
	}{
		{"empty profile", ""},
		{"path traversal", "../etc"},
		{"nested", "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(t.TempDir(), tt.profile)

			require.Error(t, err)
		})
	}
}
