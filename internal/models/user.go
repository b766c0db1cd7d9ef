package models

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User record as returned by the backend '/auth/me' endpoint.
// Cached locally for display; the role is advisory.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
