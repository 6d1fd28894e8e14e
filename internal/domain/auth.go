package domain

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   Role
}

// PrincipalFor builds a principal from a stored user.
func PrincipalFor(user *User) Principal {
	return Principal{UserID: user.ID, Role: user.Role}
}
