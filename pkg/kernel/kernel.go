package kernel

// UserID identifies a user across the system
type UserID string

func (id UserID) String() string {
	return string(id)
}

// AuthContext carries the authenticated identity for a request
type AuthContext struct {
	UserID UserID
	Email  string
	Name   string
}

// IsValid reports whether the identity is usable. A display name is
// required because companion replies address the user by name.
func (a *AuthContext) IsValid() bool {
	return a != nil && a.UserID != "" && a.Name != ""
}
