package services_test

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"relm/internal/models"
	"relm/internal/repositories"
	"relm/internal/services"
)

// sentMail is one captured delivery attempt.
type sentMail struct {
	Email   string
	Name    string
	Code    string
	Purpose string
}

// captureMailer records OTP emails instead of sending them. Deliveries arrive
// on a channel because the service dispatches them from a goroutine.
type captureMailer struct {
	sent chan sentMail
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{sent: make(chan sentMail, 8)}
}

func (m *captureMailer) SendOTP(email, name, code, purpose string) error {
	m.sent <- sentMail{Email: email, Name: name, Code: code, Purpose: purpose}
	return nil
}

// waitForMail blocks until the mailer captures a delivery or the test times out.
func waitForMail(t *testing.T, mailer *captureMailer) sentMail {
	t.Helper()
	select {
	case msg := <-mailer.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("expected an OTP email to be dispatched")
		return sentMail{}
	}
}

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// seedUser stores a user directly in the mock repository.
func seedUser(t *testing.T, repo *repositories.MockUserRepository, user *models.User) *models.User {
	t.Helper()
	err := repo.Create(context.Background(), user)
	assert.NoError(t, err)
	return user
}

func TestOTPService_Issue(t *testing.T) {
	mockRepo := repositories.NewMockUserRepository()
	mailer := newCaptureMailer()
	otpService := services.NewOTPService(mockRepo, mailer, zerolog.Nop())

	user := seedUser(t, mockRepo, &models.User{
		Username: "testuser",
		Name:     "Test User",
		Email:    "test@example.com",
	})

	err := otpService.Issue(context.Background(), user, models.OTPPurposeVerifyEmail)
	assert.NoError(t, err)

	msg := waitForMail(t, mailer)
	assert.Equal(t, "test@example.com", msg.Email)
	assert.Equal(t, models.OTPPurposeVerifyEmail, msg.Purpose)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), msg.Code)

	stored, err := mockRepo.GetByID(context.Background(), user.ID.Hex())
	assert.NoError(t, err)
	assert.Equal(t, models.OTPPurposeVerifyEmail, stored.OTPPurpose)
	assert.True(t, stored.OTPExpires.After(time.Now()))

	// Only the hash is persisted, never the code itself.
	assert.NotEmpty(t, stored.OTPHash)
	assert.NotEqual(t, msg.Code, stored.OTPHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.OTPHash), []byte(msg.Code)))
}

func TestOTPService_VerifyWrongCodeKeepsOTP(t *testing.T) {
	mockRepo := repositories.NewMockUserRepository()
	mailer := newCaptureMailer()
	otpService := services.NewOTPService(mockRepo, mailer, zerolog.Nop())

	user := seedUser(t, mockRepo, &models.User{
		Username: "testuser",
		Email:    "test@example.com",
	})
	err := otpService.Issue(context.Background(), user, models.OTPPurposeVerifyEmail)
	assert.NoError(t, err)
	msg := waitForMail(t, mailer)

	wrongCode := "000000"
	if msg.Code == wrongCode {
		wrongCode = "111111"
	}

	_, _, err = otpService.Verify(context.Background(), user.ID.Hex(), wrongCode)
	assert.ErrorIs(t, err, services.ErrInvalidOTP)

	// A failed attempt must not consume the pending code.
	stored, err := mockRepo.GetByID(context.Background(), user.ID.Hex())
	assert.NoError(t, err)
	assert.NotEmpty(t, stored.OTPHash)
	assert.Equal(t, models.OTPPurposeVerifyEmail, stored.OTPPurpose)
	assert.False(t, stored.Verified)

	// The correct code still works afterwards.
	verified, purpose, err := otpService.Verify(context.Background(), user.ID.Hex(), msg.Code)
	assert.NoError(t, err)
	assert.Equal(t, models.OTPPurposeVerifyEmail, purpose)
	assert.True(t, verified.Verified)
}

func TestOTPService_VerifyExpired(t *testing.T) {
	mockRepo := repositories.NewMockUserRepository()
	otpService := services.NewOTPService(mockRepo, newCaptureMailer(), zerolog.Nop())

	user := seedUser(t, mockRepo, &models.User{
		Username: "testuser",
		Email:    "test@example.com",
	})

	hash, _ := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.DefaultCost)
	err := mockRepo.SetOTP(context.Background(), user.ID, string(hash), time.Now().Add(-time.Minute), models.OTPPurposeVerifyEmail)
	assert.NoError(t, err)

	_, _, err = otpService.Verify(context.Background(), user.ID.Hex(), "123456")
	assert.ErrorIs(t, err, services.ErrOTPExpired)

	// No pending code at all reads the same as an expired one.
	idle := seedUser(t, mockRepo, &models.User{
		Username: "idleuser",
		Email:    "idle@example.com",
	})
	_, _, err = otpService.Verify(context.Background(), idle.ID.Hex(), "123456")
	assert.ErrorIs(t, err, services.ErrOTPExpired)
}

func TestOTPService_VerifyConsumesByPurpose(t *testing.T) {
	mockRepo := repositories.NewMockUserRepository()
	mailer := newCaptureMailer()
	otpService := services.NewOTPService(mockRepo, mailer, zerolog.Nop())

	// verify_email: verifies the account and clears all OTP state.
	user := seedUser(t, mockRepo, &models.User{
		Username: "testuser",
		Email:    "test@example.com",
	})
	err := otpService.Issue(context.Background(), user, models.OTPPurposeVerifyEmail)
	assert.NoError(t, err)
	msg := waitForMail(t, mailer)

	updated, purpose, err := otpService.Verify(context.Background(), user.ID.Hex(), msg.Code)
	assert.NoError(t, err)
	assert.Equal(t, models.OTPPurposeVerifyEmail, purpose)
	assert.True(t, updated.Verified)
	assert.Empty(t, updated.OTPHash)
	assert.Empty(t, updated.OTPPurpose)
	assert.True(t, updated.OTPExpires.IsZero())

	// reset_password: consumes the code but keeps the purpose for the reset step.
	err = otpService.Issue(context.Background(), updated, models.OTPPurposeResetPassword)
	assert.NoError(t, err)
	msg = waitForMail(t, mailer)

	updated, purpose, err = otpService.Verify(context.Background(), user.ID.Hex(), msg.Code)
	assert.NoError(t, err)
	assert.Equal(t, models.OTPPurposeResetPassword, purpose)
	assert.Empty(t, updated.OTPHash)
	assert.Equal(t, models.OTPPurposeResetPassword, updated.OTPPurpose)

	// The same code cannot be replayed once consumed.
	_, _, err = otpService.Verify(context.Background(), user.ID.Hex(), msg.Code)
	assert.ErrorIs(t, err, services.ErrOTPExpired)
}

func TestOTPService_VerifyUnknownUser(t *testing.T) {
	mockRepo := repositories.NewMockUserRepository()
	otpService := services.NewOTPService(mockRepo, newCaptureMailer(), zerolog.Nop())

	_, _, err := otpService.Verify(context.Background(), "64b0c0ffee0000000000aaaa", "123456")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}
