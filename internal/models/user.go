package models

import "time"

// User is an account. PasswordHash is nil until signup completes.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"fullName"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	AvatarURL    *string   `db:"avatar_url" json:"avatarUrl,omitempty"`
	Bio          *string   `db:"bio" json:"bio,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// ProfileUpdate carries the optional fields of a profile change.
type ProfileUpdate struct {
	FullName  *string
	Bio       *string
	AvatarURL *string
}

// OTPChallenge is the pending email verification for a signup.
type OTPChallenge struct {
	Email      string    `db:"email"`
	HashedCode string    `db:"hashed_code"`
	ExpiresAt  time.Time `db:"expires_at"`
	Verified   bool      `db:"verified"`
	Attempts   int       `db:"attempts"`
	CreatedAt  time.Time `db:"created_at"`
}

// Expired reports whether the challenge is past its expiry at now.
func (c OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
