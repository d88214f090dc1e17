package domain

import "time"

// Role is the authorization role carried by a user and by every token minted for it.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// User models an account that can authenticate against the service.
// PasswordHash always holds a bcrypt hash, never the plaintext.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	ContactNo    string    `json:"contactNo"`
	Address      string    `json:"address"`
	ProfileImg   string    `json:"profileImg,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserUpdate lists the fields a store update may touch. Nil fields are left as stored.
type UserUpdate struct {
	PasswordHash *string
}
