package domain

import "time"

// Role orders principals by privilege. Comparisons rely on rolePrivilege,
// not on string ordering.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var rolePrivilege = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	_, ok := rolePrivilege[r]
	return ok
}

// AtLeast reports whether the role carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return rolePrivilege[r] >= rolePrivilege[other]
}

// Principal mirrors the persisted representation in the principals table.
type Principal struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	Role             Role
	TwoFactorEnabled bool
	// DeliveryID identifies the out-of-band destination bound for
	// second-factor codes. Nil while second factor is disabled.
	DeliveryID *string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Sanitized returns a copy safe to hand outside the verification boundary.
func (p Principal) Sanitized() Principal {
	p.PasswordHash = ""
	return p
}
