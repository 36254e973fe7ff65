package model

import (
	"strings"
	"time"
)

// User is the identity behind a session.
//
// Accounts are created either by email/password sign-up or by GitHub OAuth.
// GitHubID is 0 for accounts that never linked GitHub; Email is empty for
// GitHub accounts whose address is hidden. PasswordHash never leaves the
// server, hence the `json:"-"` tag.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Login        string    `json:"login"`
	GitHubID     int64     `json:"githubId,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Credentials is the email/password sign-up and sign-in form.
type Credentials struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims and lower-cases the email. The password is left as typed.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

func (c Credentials) Validate() error {
	return toValidationError(draftValidate.Struct(c))
}
