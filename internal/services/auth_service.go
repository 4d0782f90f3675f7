package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"relm/internal/models"
	"relm/internal/repositories"
	"relm/pkg/rabbitmq"
)

// AuthService sequences the account flows: signup, OTP verification, signin,
// guest entry, forgot password and password reset. It owns no HTTP concerns;
// handlers translate its results and errors into responses and cookies.
type AuthService struct {
	users    repositories.UserRepository
	otp      *OTPService
	tokens   *TokenService
	mqClient *rabbitmq.Client
	logger   zerolog.Logger
}

// NewAuthService creates a new AuthService. mqClient may be nil; activity
// events are then skipped.
func NewAuthService(
	users repositories.UserRepository,
	otp *OTPService,
	tokens *TokenService,
	mqClient *rabbitmq.Client,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		otp:      otp,
		tokens:   tokens,
		mqClient: mqClient,
		logger:   logger,
	}
}

// SignUpParams describes a signup submission. AvatarURL is already stored by
// the caller; empty means the default avatar.
type SignUpParams struct {
	Username    string
	Name        string
	Email       string
	Password    string
	DateOfBirth time.Time
	AvatarURL   string
}

// SignInResult is either an issued session (Token set) or a pending
// verification (PendingUserID set) for accounts that never confirmed their
// email.
type SignInResult struct {
	Token         string
	MaxAge        time.Duration
	PendingUserID string
}

// VerifyResult reports where the client goes after a correct code. Next is
// "home" with a session token for email verification, or "reset" with the
// user id for a password reset (not yet authenticated).
type VerifyResult struct {
	Next   string
	Token  string
	MaxAge time.Duration
	UserID string
}

// SignUp creates an unverified account and triggers the verification OTP.
// No session is issued; the caller must come back with the emailed code.
// Uniqueness is checked optimistically here and enforced by the storage
// layer's unique indexes, so a lost race still comes back as ErrUserExists.
func (s *AuthService) SignUp(ctx context.Context, params SignUpParams) (string, error) {
	username := strings.ToLower(strings.TrimSpace(params.Username))

	if _, err := s.users.GetByEmail(ctx, params.Email); err == nil {
		return "", ErrUserExists
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return "", ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	image := params.AvatarURL
	if image == "" {
		image = models.DefaultAvatar
	}

	user := &models.User{
		Username:    username,
		Name:        params.Name,
		Email:       params.Email,
		Password:    string(hashedPassword),
		DateOfBirth: params.DateOfBirth,
		Bio:         models.DefaultBio,
		Image:       image,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.otp.Issue(ctx, user, models.OTPPurposeVerifyEmail); err != nil {
		return "", err
	}

	s.publishEvent("user.signed_up", map[string]interface{}{
		"userId":   user.ID.Hex(),
		"username": user.Username,
	})

	return user.ID.Hex(), nil
}

// SignIn validates credentials. Unknown email and wrong password are
// indistinguishable to the caller. Unverified accounts get a fresh OTP and a
// pending result instead of a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string, remember bool) (*SignInResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		if err := s.otp.Issue(ctx, user, models.OTPPurposeVerifyEmail); err != nil {
			return nil, err
		}
		return &SignInResult{PendingUserID: user.ID.Hex()}, nil
	}

	token, maxAge, err := s.tokens.Issue(user.Email, user.ID.Hex(), remember)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Token: token, MaxAge: maxAge}, nil
}

// VerifyEmail consumes a submitted OTP and dispatches on its stored purpose.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) (*VerifyResult, error) {
	user, purpose, err := s.otp.Verify(ctx, userID, code)
	if err != nil {
		return nil, err
	}

	switch purpose {
	case models.OTPPurposeVerifyEmail:
		token, maxAge, err := s.tokens.Issue(user.Email, user.ID.Hex(), true)
		if err != nil {
			return nil, err
		}
		s.publishEvent("user.verified", map[string]interface{}{
			"userId":   user.ID.Hex(),
			"username": user.Username,
		})
		return &VerifyResult{Next: "home", Token: token, MaxAge: maxAge}, nil
	case models.OTPPurposeResetPassword:
		return &VerifyResult{Next: "reset", UserID: user.ID.Hex()}, nil
	}

	return nil, ErrInvalidOTPRequest
}

// Forgot starts the reset flow: any stale code is replaced by a fresh one
// stored under the reset_password purpose.
func (s *AuthService) Forgot(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	if err := s.otp.Issue(ctx, user, models.OTPPurposeResetPassword); err != nil {
		return "", err
	}
	return user.ID.Hex(), nil
}

// ResetPassword stores a new password for a user who proved a reset code.
// All OTP state is cleared; the caller is redirected to signin rather than
// authenticated, forcing use of the new credential.
func (s *AuthService) ResetPassword(ctx context.Context, userID, password, confirmPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.OTPPurpose != models.OTPPurposeResetPassword {
		return ErrInvalidOTPRequest
	}
	if password != confirmPassword {
		return ErrPasswordMismatch
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.Password = string(hashedPassword)
	user.OTPHash = ""
	user.OTPExpires = time.Time{}
	user.OTPPurpose = ""

	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *AuthService) publishEvent(routingKey string, payload map[string]interface{}) {
	if s.mqClient == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", routingKey).Msg("failed to marshal event")
		return
	}
	if err := s.mqClient.Publish(routingKey, body); err != nil {
		s.logger.Error().Err(err).Str("event", routingKey).Msg("failed to publish event")
	}
}
