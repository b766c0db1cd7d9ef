package models

// RoleClaim is either local (advisory, read from the cached user) or
// confirmed by the backend. Only ConfirmedClaim unlocks gated content.
type RoleClaim interface {
	Role() string
	// nil while backend has not answered yet
	BackendVerified() *bool
}

type LocalClaim struct {
	role string
}

func NewLocalClaim(role string) LocalClaim {
	return LocalClaim{role: role}
}

func (c LocalClaim) Role() string { return c.role }

func (c LocalClaim) BackendVerified() *bool { return nil }

// Confirm upgrades the claim once the backend has accepted it
func (c LocalClaim) Confirm() ConfirmedClaim {
	return ConfirmedClaim{role: c.role}
}

type ConfirmedClaim struct {
	role string
}

func (c ConfirmedClaim) Role() string { return c.role }

func (c ConfirmedClaim) BackendVerified() *bool {
	verified := true
	return &verified
}
