package domain

import "strings"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User is an account able to log in. Password holds a bcrypt hash, or the
// plaintext value for records written by the legacy seed.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return strings.EqualFold(i.Role, RoleAdmin)
}

// PublicUser is the user shape safe to return to clients.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Role: u.Role}
}
