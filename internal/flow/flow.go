// Package flow holds the state machines behind the authentication pages:
// forgot password, reset password, OAuth callback and role gated pages.
//
// Every flow instance processes at most one backend request at a time.
// State changes only when a request completes, and only while the flow is open:
// after Close a late response is dropped and owned timers are stopped.
package flow

import (
	"sync"
	"time"

	"github.com/nkiryanov/storefront/internal/apperrors"
)

// Routes flows may navigate to
const (
	RouteLanding          = "/"
	RouteSignIn           = "/auth"
	RouteForgotPassword   = "/auth/forgot-password"
	RouteSignInOAuthError = "/auth?error=oauth_failed"
)

// Delay between successful password reset and redirect to sign in
const SuccessRedirectDelay = 3 * time.Second

// Shown when backend could not be reached or returned nothing useful
const GenericErrorMessage = "An error occurred. Please try again."

type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc allows to use a function as Navigator
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules with time.AfterFunc
var RealClock Clock = realClock{}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// machine is the in-flight guard shared by all flows
type machine struct {
	// fire is held by a running timer func and by Close, so nothing fires after Close returns
	fire sync.Mutex

	mu     sync.Mutex
	busy   bool
	closed bool
	timers []Timer
}

// begin must be called with mu held
func (m *machine) begin() error {
	switch {
	case m.closed:
		return apperrors.ErrFlowClosed
	case m.busy:
		return apperrors.ErrBusy
	}

	m.busy = true
	return nil
}

// complete applies the result of a finished request.
// Returns false and leaves state untouched if the flow was closed meanwhile
func (m *machine) complete(apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.busy = false
	if m.closed {
		return false
	}

	apply()
	return true
}

// schedule runs f after d unless the flow is closed first. Must be called with mu held.
// f must not call Close
func (m *machine) schedule(clock Clock, d time.Duration, f func()) {
	t := clock.AfterFunc(d, func() {
		m.fire.Lock()
		defer m.fire.Unlock()

		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()

		if !closed {
			f()
		}
	})
	m.timers = append(m.timers, t)
}

// Close tears the flow down: pending timers are stopped and late responses ignored.
// A timer func already running is waited for
func (m *machine) Close() {
	m.fire.Lock()
	defer m.fire.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
}
