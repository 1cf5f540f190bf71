package domain

import "time"

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // argon2id PHC string, or a legacy bcrypt hash
	RoleID       string // never empty once persisted
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRole is a user joined with its role, the shape most reads return.
type UserWithRole struct {
	User
	Role Role
}

// Actor is the authenticated identity performing an operation. The role is
// loaded from storage on every request rather than trusted from the token.
type Actor struct {
	ID       string
	Email    string
	RoleName string
}
