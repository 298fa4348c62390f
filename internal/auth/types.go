package auth

import "time"

// User is a registered account. Role capability is carried by two explicit
// flags; missing optional profile fields default to empty/false.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
	CreatedAt    time.Time
}

// Principal is the request-scoped identity resolved from a validated token.
// It is immutable for the duration of a request.
type Principal struct {
	ID          string
	Username    string
	Email       string
	IsStaff     bool
	IsSuperuser bool
}

// IsAdmin reports whether the principal holds the admin capability.
func (p Principal) IsAdmin() bool {
	return p.IsStaff || p.IsSuperuser
}

// PrincipalOf projects a stored user onto its request identity.
func PrincipalOf(u *User) Principal {
	return Principal{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}
