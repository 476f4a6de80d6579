package model

type UserRole string

const (
	RoleMember UserRole = "member"
	RoleAdmin  UserRole = "super_admin"
)

func (r UserRole) IsAdmin() bool { return r == RoleAdmin }

// User carries only what the billing core needs: identity for ownership
// checks, contact details for processor customer provisioning, and the role
// gating admin-only operations. Account management lives elsewhere.
type User struct {
	ID    string
	Email string
	Name  string
	Role  UserRole

	// ProcessorCustomerID is set lazily on first processor checkout.
	ProcessorCustomerID *string
}
