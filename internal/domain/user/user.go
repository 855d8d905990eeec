package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

// User is the stored account. There is deliberately no plaintext password
// field; only the hash is ever held.
type User struct {
	ID           int64     `json:"id"`
	UserName     string    `json:"user_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser is the input to a store's Create; the store assigns the id.
type NewUser struct {
	UserName     string
	Email        string
	PasswordHash string
}

// Changes carries the fields of a profile update. Nil means unchanged.
type Changes struct {
	UserName     *string
	PasswordHash *string
}

func (c Changes) Empty() bool {
	return c.UserName == nil && c.PasswordHash == nil
}

// Apply returns u with the changes applied and UpdatedAt set to now.
func (c Changes) Apply(u User, now time.Time) User {
	if c.UserName != nil {
		u.UserName = *c.UserName
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	u.UpdatedAt = now
	return u
}

// Profile is the public projection of a User.
type Profile struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	UserName string `json:"user_name"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Email:    u.Email,
		UserName: u.UserName,
	}
}
