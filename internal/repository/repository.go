package repository

import (
	"context"

	"github.com/nkiryanov/storefront/internal/models"
)

// Fixed keys the token pair is persisted under, whatever the backend
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// TokenStore keeps the session token pair of one profile.
// Implementations must never expose a partially written pair.
type TokenStore interface {
	// Store both tokens at once
	// If any token is empty must return apperrors.ErrPartialTokenPair and keep the previous pair
	Set(ctx context.Context, pair models.TokenPair) error

	// Return the stored pair
	// If nothing stored or only one token found must return apperrors.ErrNoSession
	Get(ctx context.Context) (models.TokenPair, error)

	// Remove the pair. Clearing an empty store is not an error
	Clear(ctx context.Context) error
}
