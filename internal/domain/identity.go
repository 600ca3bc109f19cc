package domain

// User roles
const (
	RoleAdmin = "ADMIN"
	RoleAgent = "AGENT"
	RoleUser  = "USER"
)

// Identity is the verified caller provided by the auth layer
type Identity struct {
	UserID   string
	TenantID string
	Role     string
}

// HasRole reports whether the identity holds one of roles
func (i Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
