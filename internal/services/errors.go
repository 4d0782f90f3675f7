package services

import "errors"

// Business errors surfaced to the HTTP boundary. Handlers map these to status
// codes; nothing below the boundary retries on them.
var (
	// ErrUserExists covers both duplicate email and duplicate username.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned for unknown emails and wrong passwords
	// alike, so signin responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrUserNotFound      = errors.New("user not found")
	ErrOTPExpired        = errors.New("OTP expired")
	ErrInvalidOTP        = errors.New("invalid OTP")
	ErrInvalidOTPRequest = errors.New("invalid OTP request")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrPostNotFound      = errors.New("post not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrNotAuthor         = errors.New("not the author")
)
