// Package storetest holds the behaviour every repository.TokenStore must share
package storetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/models"
	"github.com/nkiryanov/storefront/internal/repository"
)

// Run checks the store contract. newStore must return an empty store on every call
func Run(t *testing.T, newStore func(t *testing.T) repository.TokenStore) {
	t.Helper()

	pair := models.TokenPair{AccessToken: "access-A", RefreshToken: "refresh-B"}

	t.Run("get from empty store", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(t.Context())

		require.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("set and get", func(t *testing.T) {
		s := newStore(t)

		err := s.Set(t.Context(), pair)
		require.NoError(t, err)

		got, err := s.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, pair, got)
	})

	t.Run("set overwrites previous pair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(t.Context(), pair))

		rotated := models.TokenPair{AccessToken: "access-C", RefreshToken: "refresh-D"}
		err := s.Set(t.Context(), rotated)
		require.NoError(t, err)

		got, err := s.Get(t.Context())
		require.NoError(t, err)
		require.Equal(t, rotated, got)
	})

	t.Run("partial pair rejected", func(t *testing.T) {
		tests := []struct {
			name string
			pair models.TokenPair
		}{
			{"no refresh", models.TokenPair{AccessToken: "access-only"}},
			{"no access", models.TokenPair{RefreshToken: "refresh-only"}},
			{"empty", models.TokenPair{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.Set(t.Context(), pair))

				err := s.Set(t.Context(), tt.pair)

				require.ErrorIs(t, err, apperrors.ErrPartialTokenPair)
				got, err := s.Get(t.Context())
				require.NoError(t, err)
				require.Equal(t, pair, got, "previous pair must survive rejected write")
			})
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(t.Context(), pair))

		err := s.Clear(t.Context())
		require.NoError(t, err)

		_, err = s.Get(t.Context())
		require.ErrorIs(t, err, apperrors.ErrNoSession)
	})

	t.Run("clear empty store", func(t *testing.T) {
		s := newStore(t)

		err := s.Clear(t.Context())

		require.NoError(t, err)
	})

	t.Run("readers never see mixed pairs", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(t.Context(), models.TokenPair{AccessToken: "access-0", RefreshToken: "refresh-0"}))

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				err := s.Set(t.Context(), models.TokenPair{
					AccessToken:  fmt.Sprintf("access-%d", i),
					RefreshToken: fmt.Sprintf("refresh-%d", i),
				})
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				got, err := s.Get(t.Context())
				if !assert.NoError(t, err) {
					return
				}

				var a, r int
				_, err = fmt.Sscanf(got.AccessToken, "access-%d", &a)
				assert.NoError(t, err)
				_, err = fmt.Sscanf(got.RefreshToken, "refresh-%d", &r)
				assert.NoError(t, err)
				assert.Equal(t, a, r, "tokens from different writes: %v", got)
			}()
		}
		wg.Wait()
	})
}
