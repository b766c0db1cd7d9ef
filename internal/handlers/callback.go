package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/flow"
	"github.com/nkiryanov/storefront/internal/handlers/render"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
)

// Path the backend redirects the browser to after OAuth sign in
const CallbackPath = "/auth/callback"

type tokenWriter interface {
	Set(ctx context.Context, pair models.TokenPair) error
}

type sessionRefresher interface {
	Refresh(ctx context.Context) (models.User, error)
}

// CallbackResult is the outcome of the one callback the handler accepts
type CallbackResult struct {
	State flow.CallbackState
	Err   error
}

// CallbackHandler accepts the OAuth redirect exactly once.
// Every navigation of the flow becomes a redirect to the storefront
type CallbackHandler struct {
	storefrontURL string
	tokens        tokenWriter
	session       sessionRefresher
	logger        logger.Logger

	once sync.Once
	done chan CallbackResult
}

func NewCallback(storefrontURL string, tokens tokenWriter, session sessionRefresher, l logger.Logger) *CallbackHandler {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &CallbackHandler{
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
		tokens:        tokens,
		session:       session,
		logger:        l,
		done:          make(chan CallbackResult, 1),
	}
}

// Done delivers the result of the first callback
func (h *CallbackHandler) Done() <-chan CallbackResult {
	return h.done
}

func (h *CallbackHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, h.callback)

	return mux
}

func (h *CallbackHandler) callback(w http.ResponseWriter, r *http.Request) {
	handled := false
	h.once.Do(func() {
		handled = true

		nav := flow.NavigatorFunc(func(route string) {
			http.Redirect(w, r, h.storefrontURL+route, http.StatusFound)
		})
		f := flow.NewCallbackFlow(h.tokens, h.session, nav, h.logger)
		defer f.Close()

		err := f.Handle(r.Context(), r.URL.Query())
		h.done <- CallbackResult{State: f.State(), Err: err}
	})

	if !handled {
		render.ServiceError(w, "Callback already handled", http.StatusGone)
	}
}

// Message suitable for the terminal after callback finished
func (r CallbackResult) Message() string {
	switch {
	case r.State == flow.CallbackAuthenticated:
		return "Signed in"
	case errors.Is(r.Err, apperrors.ErrPartialTokenPair):
		return "Sign in failed: backend did not return both tokens"
	case r.Err != nil:
		return "Sign in failed: " + r.Err.Error()
	default:
		return "Sign in failed"
	}
}
