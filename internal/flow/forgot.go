package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
)

type ForgotState string

const (
	ForgotFormReady  ForgotState = "form_ready"
	ForgotSubmitting ForgotState = "submitting"
	ForgotEmailSent  ForgotState = "email_sent"
)

type resetRequester interface {
	RequestPasswordReset(ctx context.Context, email string) error
}

// ForgotPasswordView is what the forgot password page renders
type ForgotPasswordView struct {
	State ForgotState
	Email string
	Error string
}

// Busy reports that submit control must be disabled
func (v ForgotPasswordView) Busy() bool {
	return v.State == ForgotSubmitting
}

// Confirmation lines shown after the link was sent
func (v ForgotPasswordView) Confirmation() []string {
	if v.State != ForgotEmailSent {
		return nil
	}
	return []string{
		fmt.Sprintf("We've sent a password reset link to %s.", v.Email),
		fmt.Sprintf("The link will expire in %s.", models.ResetLinkValidity),
	}
}

// ForgotPasswordFlow asks backend to send a reset link.
// Failures keep the form so the user may submit again; EmailSent is terminal
type ForgotPasswordFlow struct {
	machine

	client resetRequester
	logger logger.Logger

	view ForgotPasswordView
}

func NewForgotPasswordFlow(client resetRequester, l logger.Logger) *ForgotPasswordFlow {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &ForgotPasswordFlow{
		client: client,
		logger: l.With("flow", "forgot_password"),
		view:   ForgotPasswordView{State: ForgotFormReady},
	}
}

func (f *ForgotPasswordFlow) View() ForgotPasswordView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *ForgotPasswordFlow) Submit(ctx context.Context, email string) error {
	f.mu.Lock()
	if f.view.State == ForgotEmailSent {
		f.mu.Unlock()
		return apperrors.ErrFlowFinished
	}
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return err
	}

	if err := validateResetRequest(models.NewResetRequest(email)); err != nil {
		f.busy = false
		f.view.Error = apperrors.Message(err, GenericErrorMessage)
		f.mu.Unlock()
		return err
	}

	f.view = ForgotPasswordView{State: ForgotSubmitting, Email: strings.TrimSpace(email)}
	f.mu.Unlock()

	err := f.client.RequestPasswordReset(ctx, email)

	f.complete(func() {
		if err != nil {
			f.view.State = ForgotFormReady
			f.view.Error = apperrors.Message(err, GenericErrorMessage)
			return
		}
		f.view.State = ForgotEmailSent
	})

	switch {
	case err == nil:
		f.logger.Info("Reset link requested")
	case errors.Is(err, apperrors.ErrNetwork):
		f.logger.Warn("Reset link request failed, backend unreachable", "error", err)
	default:
		f.logger.Info("Reset link request rejected", "error", err)
	}

	return err
}
