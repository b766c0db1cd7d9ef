package console

import (
	"strings"

	"github.com/nkiryanov/storefront/internal/flow"
)

// Page names
const (
	PageForgotPassword = "forgot-password"
	PageResetPassword  = "reset-password"
	PageAdmin          = "admin"
	PageRedirect       = "redirect"
)

const (
	AdminDashboardTitle = "Admin Dashboard"
	AdminFeaturesNote   = "Admin features coming soon: Manage products, view orders, manage users, and more."
)

func ForgotPasswordPage(v flow.ForgotPasswordView) Page {
	p := Page{
		Name:  PageForgotPassword,
		State: string(v.State),
		Error: v.Error,
		Busy:  v.Busy(),
		Lines: v.Confirmation(),
	}
	if v.State == flow.ForgotFormReady {
		p.Lines = []string{"Enter your email address and we'll send you a link to reset your password."}
	}
	return p
}

func ResetPasswordPage(v flow.ResetPasswordView) Page {
	p := Page{
		Name:  PageResetPassword,
		State: string(v.State),
		Error: v.Error,
		Busy:  v.Busy(),
	}

	switch {
	case v.State == flow.ResetVerifying:
		p.Lines = []string{"Verifying reset link..."}
	case v.State == flow.ResetTokenInvalid:
		p.Lines = []string{"Request a new reset link: " + flow.RouteForgotPassword}
	case v.State == flow.ResetSuccess:
		p.Lines = []string{"Password reset successfully. Redirecting to sign in..."}
	case v.FormVisible() && v.Token.AssociatedEmail != "":
		p.Lines = []string{"Resetting password for " + v.Token.AssociatedEmail}
	}
	return p
}

// AdminPage shows gated content only for a backend confirmed claim
func AdminPage(f *flow.RoleGateFlow) Page {
	p := Page{Name: PageAdmin, State: string(f.State())}

	switch state := f.State(); state {
	case flow.GateCheckingLocalClaim, flow.GateVerifyingWithBackend:
		p.Busy = true
		p.Lines = []string{"Verifying access..."}
	case flow.GateGranted:
		claim, ok := f.Confirmed()
		if !ok {
			break
		}
		user, _ := f.Profile()
		p.Lines = []string{
			AdminDashboardTitle,
			flow.MessageBackendVerified,
			"Your Admin Profile",
			"  Name: " + user.FullName,
			"  Email: " + user.Email,
			"  Role: " + strings.ToUpper(claim.Role()),
			AdminFeaturesNote,
		}
	}
	return p
}
