package flow

import (
	"context"
	"errors"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
)

type GateState string

const (
	GateCheckingLocalClaim   GateState = "checking_local_claim"
	GateVerifyingWithBackend GateState = "verifying_with_backend"
	GateGranted              GateState = "granted"
	GateDenied               GateState = "denied"
)

const MessageBackendVerified = "Backend verified: You are an authorized admin"

// Supplies the locally cached user. The role in it is a hint, not a permission
type localSession interface {
	User() (models.User, bool)
}

type roleVerifier interface {
	VerifyAdminRole(ctx context.Context) error
}

// RoleGateFlow guards a page behind a role.
// Local claim decides only whether to ask the backend; content is unlocked by backend confirmation.
// Denied always redirects to landing
type RoleGateFlow struct {
	machine

	role      string
	session   localSession
	verifier  roleVerifier
	navigator Navigator
	logger    logger.Logger

	// Total attempts on transport failures. A non-2xx answer is final at once
	attempts int

	state GateState
	claim models.RoleClaim
	user  models.User
}

type RoleGateOption func(*RoleGateFlow)

// WithAttempts sets how many times an unreachable backend is asked before denying
func WithAttempts(n int) RoleGateOption {
	return func(f *RoleGateFlow) {
		if n > 0 {
			f.attempts = n
		}
	}
}

func NewRoleGateFlow(role string, session localSession, verifier roleVerifier, nav Navigator, l logger.Logger, opts ...RoleGateOption) *RoleGateFlow {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	f := &RoleGateFlow{
		role:      role,
		session:   session,
		verifier:  verifier,
		navigator: nav,
		logger:    l.With("flow", "role_gate", "role", role),
		attempts:  1,
		state:     GateCheckingLocalClaim,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *RoleGateFlow) State() GateState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Claim returns the current claim: nil before the local check, then local, then confirmed
func (f *RoleGateFlow) Claim() models.RoleClaim {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claim
}

// Confirmed is the only way to reach gated content
func (f *RoleGateFlow) Confirmed() (models.ConfirmedClaim, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	claim, ok := f.claim.(models.ConfirmedClaim)
	if !ok || f.state != GateGranted {
		return models.ConfirmedClaim{}, false
	}
	return claim, true
}

// Profile returns the session user, only once the backend has confirmed the role
func (f *RoleGateFlow) Profile() (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.claim.(models.ConfirmedClaim); !ok || f.state != GateGranted {
		return models.User{}, false
	}
	return f.user, true
}

func (f *RoleGateFlow) Check(ctx context.Context) error {
	f.mu.Lock()
	if f.state != GateCheckingLocalClaim {
		f.mu.Unlock()
		return apperrors.ErrFlowFinished
	}
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return err
	}

	user, ok := f.session.User()
	if !ok || user.Role != f.role {
		f.mu.Unlock()
		f.logger.Info("Local claim does not match, backend not asked", "has_session", ok)
		f.deny()
		return apperrors.ErrRoleDenied
	}

	local := models.NewLocalClaim(user.Role)
	f.claim = local
	f.user = user
	f.state = GateVerifyingWithBackend
	f.mu.Unlock()

	err := f.verify(ctx)
	if err != nil {
		f.logger.Info("Backend denied role", "error", err)
		f.deny()
		return err
	}

	f.complete(func() {
		f.state = GateGranted
		f.claim = local.Confirm()
	})
	return nil
}

func (f *RoleGateFlow) verify(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		err = f.verifier.VerifyAdminRole(ctx)
		if err == nil || !errors.Is(err, apperrors.ErrNetwork) || ctx.Err() != nil {
			return err
		}
		f.logger.Warn("Role verification unreachable", "attempt", attempt, "error", err)
	}
	return err
}

func (f *RoleGateFlow) deny() {
	if f.complete(func() { f.state = GateDenied }) {
		f.navigator.Navigate(RouteLanding)
	}
}
