package console

import (
	"context"
	"errors"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/flow"
)

// retryable errors leave the form on screen, so the user is asked again
func retryable(err error) bool {
	return errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrRecovery) ||
		errors.Is(err, apperrors.ErrNetwork)
}

// RunForgotPassword asks for email until the link is sent or input ends
func RunForgotPassword(ctx context.Context, f *flow.ForgotPasswordFlow, p *Prompter, r *Renderer) error {
	if err := r.Render(ForgotPasswordPage(f.View())); err != nil {
		return err
	}

	for {
		email, err := p.Ask("Email")
		if err != nil {
			return err
		}

		err = f.Submit(ctx, email)
		if renderErr := r.Render(ForgotPasswordPage(f.View())); renderErr != nil {
			return renderErr
		}

		switch {
		case err == nil:
			return nil
		case retryable(err):
			continue
		default:
			return err
		}
	}
}

// RunResetPassword verifies the token, then asks for a new password until accepted.
// Redirect to sign in happens later from the flow timer
func RunResetPassword(ctx context.Context, f *flow.ResetPasswordFlow, p *Prompter, r *Renderer) error {
	if err := r.Render(ResetPasswordPage(f.View())); err != nil {
		return err
	}

	err := f.Verify(ctx)
	if renderErr := r.Render(ResetPasswordPage(f.View())); renderErr != nil {
		return renderErr
	}
	if err != nil {
		return err
	}

	for {
		password, err := p.Ask("New password")
		if err != nil {
			return err
		}
		confirm, err := p.Ask("Confirm password")
		if err != nil {
			return err
		}

		err = f.Submit(ctx, password, confirm)
		if renderErr := r.Render(ResetPasswordPage(f.View())); renderErr != nil {
			return renderErr
		}

		switch {
		case err == nil:
			return nil
		case retryable(err):
			continue
		default:
			return err
		}
	}
}

// RunAdmin checks the gate and renders the result.
// Denial is already followed by navigation to landing
func RunAdmin(ctx context.Context, f *flow.RoleGateFlow, r *Renderer) error {
	if err := r.Render(AdminPage(f)); err != nil {
		return err
	}

	err := f.Check(ctx)
	if renderErr := r.Render(AdminPage(f)); renderErr != nil {
		return renderErr
	}
	return err
}
