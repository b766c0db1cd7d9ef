package flow

import (
	"context"
	"errors"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
)

type ResetState string

const (
	ResetVerifying    ResetState = "verifying"
	ResetTokenInvalid ResetState = "token_invalid"
	ResetFormReady    ResetState = "form_ready"
	ResetSubmitting   ResetState = "submitting"
	ResetSuccess      ResetState = "success"
)

const MessageMissingToken = "Invalid reset link. Please request a new password reset."

type passwordResetter interface {
	VerifyResetToken(ctx context.Context, token string) (email string, err error)
	ResetPassword(ctx context.Context, token string, password string) error
}

// ResetPasswordView is what the reset password page renders
type ResetPasswordView struct {
	State ResetState
	Token models.ResetToken
	Form  models.ResetForm
	Error string
}

func (v ResetPasswordView) Busy() bool {
	return v.State == ResetVerifying || v.State == ResetSubmitting
}

// FormVisible is true only after backend accepted the token
func (v ResetPasswordView) FormVisible() bool {
	return v.Token.Verified && (v.State == ResetFormReady || v.State == ResetSubmitting)
}

// ResetPasswordFlow verifies the reset token on entry and then accepts a new password.
//
//	Verifying -> TokenInvalid (terminal)
//	Verifying -> FormReady -> Submitting -> Success (terminal, redirects to sign in)
//	                       <- Submitting (backend rejected, form stays)
type ResetPasswordFlow struct {
	machine

	client    passwordResetter
	navigator Navigator
	clock     Clock
	logger    logger.Logger

	view ResetPasswordView
}

func NewResetPasswordFlow(token string, client passwordResetter, nav Navigator, clock Clock, l logger.Logger) *ResetPasswordFlow {
	if clock == nil {
		clock = RealClock
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &ResetPasswordFlow{
		client:    client,
		navigator: nav,
		clock:     clock,
		logger:    l.With("flow", "reset_password"),
		view: ResetPasswordView{
			State: ResetVerifying,
			Token: models.ResetToken{Raw: token},
		},
	}
}

func (f *ResetPasswordFlow) View() ResetPasswordView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

// Verify runs once on page entry
func (f *ResetPasswordFlow) Verify(ctx context.Context) error {
	f.mu.Lock()
	if f.view.State != ResetVerifying {
		f.mu.Unlock()
		return apperrors.ErrFlowFinished
	}
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return err
	}

	token := f.view.Token.Raw
	if token == "" {
		f.busy = false
		f.view.State = ResetTokenInvalid
		f.view.Error = MessageMissingToken
		f.mu.Unlock()

		f.logger.Info("Reset page opened without token")
		return &apperrors.TokenError{RecoveryError: apperrors.RecoveryError{Message: MessageMissingToken}}
	}
	f.mu.Unlock()

	email, err := f.client.VerifyResetToken(ctx, token)

	f.complete(func() {
		if err != nil {
			f.view.State = ResetTokenInvalid
			f.view.Error = apperrors.Message(err, GenericErrorMessage)
			return
		}
		f.view.State = ResetFormReady
		f.view.Token.Verified = true
		f.view.Token.AssociatedEmail = email
	})

	if err != nil {
		f.logger.Info("Reset token rejected", "error", err)
	}
	return err
}

// Submit sends new password. Validation failures never reach the backend
func (f *ResetPasswordFlow) Submit(ctx context.Context, password string, confirm string) error {
	f.mu.Lock()
	switch f.view.State {
	case ResetTokenInvalid, ResetSuccess:
		f.mu.Unlock()
		return apperrors.ErrFlowFinished
	case ResetVerifying:
		busy := f.busy
		f.mu.Unlock()
		if busy {
			return apperrors.ErrBusy
		}
		return apperrors.ErrNotReady
	}
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return err
	}

	form := models.ResetForm{Password: password, ConfirmPassword: confirm}
	f.view.Form = form
	f.view.Error = ""

	if err := validateResetForm(form); err != nil {
		f.busy = false
		f.view.Error = apperrors.Message(err, GenericErrorMessage)
		f.mu.Unlock()
		return err
	}

	f.view.State = ResetSubmitting
	token := f.view.Token.Raw
	f.mu.Unlock()

	// Token is not verified again: backend is the final judge at submission
	err := f.client.ResetPassword(ctx, token, password)

	f.complete(func() {
		if err != nil {
			f.view.State = ResetFormReady
			f.view.Error = apperrors.Message(err, GenericErrorMessage)
			return
		}

		f.view.State = ResetSuccess
		f.schedule(f.clock, SuccessRedirectDelay, func() {
			f.navigator.Navigate(RouteSignIn)
		})
	})

	switch {
	case err == nil:
		f.logger.Info("Password reset")
	case errors.Is(err, apperrors.ErrNetwork):
		f.logger.Warn("Password reset failed, backend unreachable", "error", err)
	default:
		f.logger.Info("Password reset rejected", "error", err)
	}

	return err
}
