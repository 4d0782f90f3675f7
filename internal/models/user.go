package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OTP purposes stored on a user while a code is pending.
const (
	OTPPurposeVerifyEmail   = "verify_email"
	OTPPurposeResetPassword = "reset_password"
)

// Defaults applied to new users.
const (
	DefaultBio    = "This user prefers to keep an air of mystery about them."
	DefaultAvatar = "default-avatar.png"
)

// User represents a member of the blogging platform.
// Username and Email are unique (backed by unique indexes in Mongo).
// OTPHash and OTPExpires are either both set or both empty.
type User struct {
	ID          bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	Username    string          `json:"username" bson:"username" validate:"required,min=3,max=100"`
	Name        string          `json:"name" bson:"name" validate:"required,max=100"`
	Email       string          `json:"email" bson:"email" validate:"required,email"`
	Password    string          `json:"-" bson:"password"` // bcrypt hash, never serialized
	DateOfBirth time.Time       `json:"dateOfBirth,omitempty" bson:"date_of_birth,omitempty"`
	Website     string          `json:"website,omitempty" bson:"website,omitempty"`
	Bio         string          `json:"bio" bson:"bio" validate:"max=120"`
	Image       string          `json:"image" bson:"image"`
	Verified    bool            `json:"verified" bson:"verified"`
	OTPHash     string          `json:"-" bson:"otp_hash,omitempty"`
	OTPExpires  time.Time       `json:"-" bson:"otp_expires,omitempty"`
	OTPPurpose  string          `json:"-" bson:"otp_purpose,omitempty"`
	Posts       []bson.ObjectID `json:"posts" bson:"posts"`
	CreatedAt   time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" bson:"updated_at"`
}

// OTPPending reports whether an unexpired code is waiting to be consumed.
func (u *User) OTPPending(now time.Time) bool {
	return u.OTPHash != "" && !u.OTPExpires.IsZero() && u.OTPExpires.After(now)
}

// AuthorSummary is the slice of a user attached to feed items and comments.
type AuthorSummary struct {
	ID       bson.ObjectID `json:"id"`
	Username string        `json:"username"`
	Name     string        `json:"name"`
	Image    string        `json:"image"`
}

// Summary returns the public author view of the user.
func (u *User) Summary() AuthorSummary {
	return AuthorSummary{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Image:    u.Image,
	}
}
