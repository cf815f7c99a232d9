package domain

import "time"

// Role is one member of the closed role set declared by the role matrix.
type Role string

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FullName     *string    `json:"full_name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// NewUser is the account creation payload.
type NewUser struct {
	Username string  `json:"username" validate:"required,min=3,max=64"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Role     Role    `json:"role" validate:"required"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UserPatch is a partial user update; nil fields are left unchanged.
type UserPatch struct {
	Username  *string    `json:"username,omitempty" validate:"omitempty,min=3,max=64"`
	Email     *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FullName  *string    `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Role      *Role      `json:"role,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
	DeletedAt *time.Time `json:"-"`
}

func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.FullName == nil &&
		p.Role == nil && p.IsActive == nil && p.DeletedAt == nil
}
