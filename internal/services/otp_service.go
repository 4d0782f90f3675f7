package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"relm/internal/models"
	"relm/internal/repositories"
)

const (
	otpTTL = 10 * time.Minute

	// Upper bound on one delivery attempt. SMTP setup, greeting and send all
	// have to finish within this window; past it the attempt is abandoned.
	otpSendTimeout = 15 * time.Second
)

// OTPMailer delivers a plaintext code to an address. Implementations may be
// slow; the service never calls them on a request path.
type OTPMailer interface {
	SendOTP(email, name, code, purpose string) error
}

// OTPService issues and verifies one-time passwords. Only a bcrypt hash of the
// code is persisted; the plaintext leaves the process exclusively by email.
type OTPService struct {
	users  repositories.UserRepository
	mailer OTPMailer
	logger zerolog.Logger
}

// NewOTPService creates a new OTPService.
func NewOTPService(users repositories.UserRepository, mailer OTPMailer, logger zerolog.Logger) *OTPService {
	return &OTPService{
		users:  users,
		mailer: mailer,
		logger: logger,
	}
}

// Issue generates a fresh 6-digit code for the user, stores its hash with a
// 10-minute expiry, and dispatches the plaintext by email without waiting for
// delivery. A pending code is silently overwritten. Delivery failure is logged
// and never surfaces to the caller.
func (s *OTPService) Issue(ctx context.Context, user *models.User, purpose string) error {
	code, err := generateOTPCode()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash OTP: %w", err)
	}

	if err := s.users.SetOTP(ctx, user.ID, string(hash), time.Now().Add(otpTTL), purpose); err != nil {
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	go s.dispatch(user.Email, user.Name, code, purpose)

	return nil
}

// Verify checks a submitted code for the user. On a mismatch the stored OTP
// fields are left untouched, so the user may retry until expiry. On success
// the code is consumed and the stored purpose decides the outcome: for
// verify_email the user becomes verified and the purpose is cleared; for
// reset_password the purpose is kept so the reset step can authorize itself.
// The consumed purpose is returned alongside the updated user.
func (s *OTPService) Verify(ctx context.Context, userID, code string) (*models.User, string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	if user.OTPHash == "" || user.OTPExpires.IsZero() || user.OTPExpires.Before(time.Now()) {
		return nil, "", ErrOTPExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(code)); err != nil {
		return nil, "", ErrInvalidOTP
	}

	purpose := user.OTPPurpose
	user.OTPHash = ""
	user.OTPExpires = time.Time{}

	switch purpose {
	case models.OTPPurposeVerifyEmail:
		user.Verified = true
		user.OTPPurpose = ""
	case models.OTPPurposeResetPassword:
		// Purpose survives so the reset endpoint can check it.
	default:
		return nil, "", ErrInvalidOTPRequest
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to consume OTP: %w", err)
	}

	return user, purpose, nil
}

// dispatch runs detached from any request. The caller has already responded by
// the time this fails, so the error can only be logged.
func (s *OTPService) dispatch(email, name, code, purpose string) {
	done := make(chan error, 1)
	go func() {
		done <- s.mailer.SendOTP(email, name, code, purpose)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error().Err(err).Str("email", email).Msg("OTP email failed")
			return
		}
		s.logger.Info().Str("email", email).Str("purpose", purpose).Msg("OTP email sent")
	case <-time.After(otpSendTimeout):
		s.logger.Error().Str("email", email).Msg("OTP email timed out")
	}
}

// generateOTPCode draws a 6-digit code uniformly from [100000, 999999].
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
