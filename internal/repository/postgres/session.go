package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/models"
)

// DBTX is satisfied by pgxpool.Pool, pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var ErrNotMigrated = errors.New("session_tokens table not found, apply migrations first")

// SessionStore keeps token pairs of many profiles in one table, a row per profile
type SessionStore struct {
	DB      DBTX
	Profile string
}

func NewSessionStore(db DBTX, profile string) (*SessionStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if profile == "" {
		return nil, errors.New("profile must not be empty")
	}

	return &SessionStore{DB: db, Profile: profile}, nil
}

const upsertTokens = `-- name: UpsertTokens
INSERT INTO session_tokens (profile, access_token, refresh_token, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    updated_at = EXCLUDED.updated_at
`

// Single statement, so both columns change together
func (s *SessionStore) Set(ctx context.Context, pair models.TokenPair) error {
	if !pair.IsComplete() {
		return apperrors.ErrPartialTokenPair
	}

	_, err := s.DB.Exec(ctx, upsertTokens, s.Profile, pair.AccessToken, pair.RefreshToken)
	return mapError(err)
}

const getTokens = `-- name: GetTokens
SELECT access_token, refresh_token
FROM session_tokens
WHERE profile = $1
`

func (s *SessionStore) Get(ctx context.Context) (models.TokenPair, error) {
	rows, _ := s.DB.Query(ctx, getTokens, s.Profile)
	pair, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.TokenPair, error) {
		var p models.TokenPair
		err := row.Scan(&p.AccessToken, &p.RefreshToken)
		return p, err
	})

	switch {
	case err == nil && pair.IsComplete():
		return pair, nil
	case err == nil, errors.Is(err, pgx.ErrNoRows):
		return models.TokenPair{}, apperrors.ErrNoSession
	default:
		return models.TokenPair{}, mapError(err)
	}
}

const deleteTokens = `-- name: DeleteTokens
DELETE FROM session_tokens
WHERE profile = $1
`

func (s *SessionStore) Clear(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, deleteTokens, s.Profile)
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.CheckViolation:
			return fmt.Errorf("repo error: %w", apperrors.ErrPartialTokenPair)
		case pgerrcode.UndefinedTable:
			return fmt.Errorf("repo error: %w", ErrNotMigrated)
		}
	}

	return fmt.Errorf("db error: %w", err)
}
