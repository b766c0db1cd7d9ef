package models

import "strings"

// Lifetime of a reset link as communicated to the user.
// Enforced by the backend only.
const ResetLinkValidity = "1 hour"

type ResetRequest struct {
	Email string `json:"email" validate:"required"`
}

// NewResetRequest normalizes the address the way backend stores it
func NewResetRequest(email string) ResetRequest {
	return ResetRequest{Email: strings.ToLower(strings.TrimSpace(email))}
}

// ResetToken taken from the reset link.
// AssociatedEmail comes from the backend and is for display only.
type ResetToken struct {
	Raw             string
	Verified        bool
	AssociatedEmail string
}

// ResetForm is the new password form
type ResetForm struct {
	Password        string `json:"password" validate:"min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}
