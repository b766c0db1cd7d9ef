package flow

import (
	"context"
	"net/url"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
)

type CallbackState string

const (
	CallbackPending       CallbackState = "pending"
	CallbackProcessing    CallbackState = "processing"
	CallbackAuthenticated CallbackState = "authenticated"
	CallbackFailed        CallbackState = "failed"
)

// Query parameters the backend puts on the redirect
const (
	ParamAccessToken  = "access_token"
	ParamRefreshToken = "refresh_token"
)

type tokenWriter interface {
	Set(ctx context.Context, pair models.TokenPair) error
}

type sessionRefresher interface {
	Refresh(ctx context.Context) (models.User, error)
}

// CallbackFlow captures tokens delivered by the OAuth redirect.
// Runs once: tokens are stored, session refreshed and only then the user is sent to landing.
// Without both tokens the store is left untouched and the user goes to sign in with an error marker
type CallbackFlow struct {
	machine

	tokens    tokenWriter
	session   sessionRefresher
	navigator Navigator
	logger    logger.Logger

	state CallbackState
}

func NewCallbackFlow(tokens tokenWriter, session sessionRefresher, nav Navigator, l logger.Logger) *CallbackFlow {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &CallbackFlow{
		tokens:    tokens,
		session:   session,
		navigator: nav,
		logger:    l.With("flow", "oauth_callback"),
		state:     CallbackPending,
	}
}

func (f *CallbackFlow) State() CallbackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *CallbackFlow) Handle(ctx context.Context, query url.Values) error {
	f.mu.Lock()
	if f.state != CallbackPending {
		f.mu.Unlock()
		return apperrors.ErrFlowFinished
	}
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.state = CallbackProcessing
	f.mu.Unlock()

	pair := models.TokenPair{
		AccessToken:  query.Get(ParamAccessToken),
		RefreshToken: query.Get(ParamRefreshToken),
	}

	if !pair.IsComplete() {
		f.logger.Warn("Callback without token pair",
			"has_access_token", pair.AccessToken != "",
			"has_refresh_token", pair.RefreshToken != "",
		)
		f.fail()
		return apperrors.ErrPartialTokenPair
	}

	if err := f.tokens.Set(ctx, pair); err != nil {
		f.logger.Error("Failed to store session tokens", "error", err)
		f.fail()
		return err
	}

	// Landing must render with a populated session, so refresh goes first.
	// A failed refresh is not fatal: tokens are stored and landing will retry
	if _, err := f.session.Refresh(ctx); err != nil {
		f.logger.Warn("Session refresh after callback failed", "error", err)
	}

	if f.complete(func() { f.state = CallbackAuthenticated }) {
		f.logger.Info("Signed in via OAuth callback")
		f.navigator.Navigate(RouteLanding)
	}

	return nil
}

func (f *CallbackFlow) fail() {
	if f.complete(func() { f.state = CallbackFailed }) {
		f.navigator.Navigate(RouteSignInOAuthError)
	}
}
