package services_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"relm/internal/models"
	"relm/internal/repositories"
	"relm/internal/services"
)

// newAuthService wires an AuthService over in-memory repositories and a
// capturing mailer.
func newAuthService() (*services.AuthService, *repositories.MockUserRepository, *captureMailer) {
	mockRepo := repositories.NewMockUserRepository()
	mailer := newCaptureMailer()
	otpService := services.NewOTPService(mockRepo, mailer, zerolog.Nop())
	tokenService := services.NewTokenService(testSecret)
	authService := services.NewAuthService(mockRepo, otpService, tokenService, nil, zerolog.Nop())
	return authService, mockRepo, mailer
}

func signUpParams() services.SignUpParams {
	return services.SignUpParams{
		Username: "TestUser",
		Name:     "Test User",
		Email:    "test@example.com",
		Password: "password123",
	}
}

func TestAuthService_SignUp(t *testing.T) {
	authService, mockRepo, mailer := newAuthService()

	userID, err := authService.SignUp(context.Background(), signUpParams())
	assert.NoError(t, err)
	assert.NotEmpty(t, userID)

	user, err := mockRepo.GetByID(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)
	assert.False(t, user.Verified)
	assert.Equal(t, models.DefaultBio, user.Bio)
	assert.Equal(t, models.DefaultAvatar, user.Image)

	// Password is stored hashed.
	assert.NotEqual(t, "password123", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))

	// A verification code is pending and on its way.
	assert.NotEmpty(t, user.OTPHash)
	assert.Equal(t, models.OTPPurposeVerifyEmail, user.OTPPurpose)
	msg := waitForMail(t, mailer)
	assert.Equal(t, "test@example.com", msg.Email)
	assert.Equal(t, models.OTPPurposeVerifyEmail, msg.Purpose)
}

func TestAuthService_SignUpConflicts(t *testing.T) {
	authService, _, mailer := newAuthService()

	_, err := authService.SignUp(context.Background(), signUpParams())
	assert.NoError(t, err)
	waitForMail(t, mailer)

	// Same email, different username.
	params := signUpParams()
	params.Username = "otheruser"
	_, err = authService.SignUp(context.Background(), params)
	assert.ErrorIs(t, err, services.ErrUserExists)

	// Same username, different email. Case differences do not help.
	params = signUpParams()
	params.Username = "TESTUSER"
	params.Email = "other@example.com"
	_, err = authService.SignUp(context.Background(), params)
	assert.ErrorIs(t, err, services.ErrUserExists)
}

func TestAuthService_SignIn(t *testing.T) {
	authService, _, mailer := newAuthService()

	userID, err := authService.SignUp(context.Background(), signUpParams())
	assert.NoError(t, err)
	waitForMail(t, mailer)

	// Unverified accounts get a fresh code instead of a session.
	result, err := authService.SignIn(context.Background(), "test@example.com", "password123", false)
	assert.NoError(t, err)
	assert.Equal(t, userID, result.PendingUserID)
	assert.Empty(t, result.Token)
	freshCode := waitForMail(t, mailer)

	// Verify, then sign in for real.
	_, err = authService.VerifyEmail(context.Background(), userID, freshCode.Code)
	assert.NoError(t, err)

	result, err = authService.SignIn(context.Background(), "test@example.com", "password123", false)
	assert.NoError(t, err)
	assert.Empty(t, result.PendingUserID)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, services.SessionDurationDefault, result.MaxAge)

	result, err = authService.SignIn(context.Background(), "test@example.com", "password123", true)
	assert.NoError(t, err)
	assert.Equal(t, services.SessionDurationRemember, result.MaxAge)

	claims, err := services.NewTokenService(testSecret).Verify(result.Token)
	assert.NoError(t, err)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, userID, claims.UserID)
	assert.False(t, claims.IsGuest())
}

func TestAuthService_SignInRejectsBadCredentials(t *testing.T) {
	authService, _, mailer := newAuthService()

	_, err := authService.SignUp(context.Background(), signUpParams())
	assert.NoError(t, err)
	waitForMail(t, mailer)

	// Unknown email and wrong password are indistinguishable.
	_, unknownErr := authService.SignIn(context.Background(), "nobody@example.com", "password123", false)
	assert.ErrorIs(t, unknownErr, services.ErrInvalidCredentials)

	_, wrongErr := authService.SignIn(context.Background(), "test@example.com", "wrongpassword", false)
	assert.ErrorIs(t, wrongErr, services.ErrInvalidCredentials)

	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestAuthService_VerifyEmail(t *testing.T) {
	authService, mockRepo, mailer := newAuthService()

	userID, err := authService.SignUp(context.Background(), signUpParams())
	assert.NoError(t, err)
	msg := waitForMail(t, mailer)

	wrongCode := "000000"
	if msg.Code == wrongCode {
		wrongCode = "111111"
	}
	_, err = authService.VerifyEmail(context.Background(), userID, wrongCode)
	assert.ErrorIs(t, err, services.ErrInvalidOTP)

	result, err := authService.VerifyEmail(context.Background(), userID, msg.Code)
	assert.NoError(t, err)
	assert.Equal(t, "home", result.Next)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, services.SessionDurationRemember, result.MaxAge)

	user, err := mockRepo.GetByID(context.Background(), userID)
	assert.NoError(t, err)
	assert.True(t, user.Verified)
	assert.Empty(t, user.OTPHash)
	assert.Empty(t, user.OTPPurpose)
}

func TestAuthService_ForgotAndReset(t *testing.T) {
	authService, mockRepo, mailer := newAuthService()

	userID, err := authService.SignUp(context.Background(), signUpParams())
	assert.NoError(t, err)
	code := waitForMail(t, mailer)
	_, err = authService.VerifyEmail(context.Background(), userID, code.Code)
	assert.NoError(t, err)

	// A reset with no reset code on file is refused.
	err = authService.ResetPassword(context.Background(), userID, "newpassword1", "newpassword1")
	assert.ErrorIs(t, err, services.ErrInvalidOTPRequest)

	_, err = authService.Forgot(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	forgotID, err := authService.Forgot(context.Background(), "test@example.com")
	assert.NoError(t, err)
	assert.Equal(t, userID, forgotID)
	resetCode := waitForMail(t, mailer)
	assert.Equal(t, models.OTPPurposeResetPassword, resetCode.Purpose)

	result, err := authService.VerifyEmail(context.Background(), userID, resetCode.Code)
	assert.NoError(t, err)
	assert.Equal(t, "reset", result.Next)
	assert.Equal(t, userID, result.UserID)
	assert.Empty(t, result.Token)

	err = authService.ResetPassword(context.Background(), userID, "newpassword1", "different")
	assert.ErrorIs(t, err, services.ErrPasswordMismatch)

	err = authService.ResetPassword(context.Background(), userID, "newpassword1", "newpassword1")
	assert.NoError(t, err)

	// All OTP state is gone and only the new password signs in.
	user, err := mockRepo.GetByID(context.Background(), userID)
	assert.NoError(t, err)
	assert.Empty(t, user.OTPHash)
	assert.Empty(t, user.OTPPurpose)

	_, err = authService.SignIn(context.Background(), "test@example.com", "password123", false)
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	signedIn, err := authService.SignIn(context.Background(), "test@example.com", "newpassword1", false)
	assert.NoError(t, err)
	assert.NotEmpty(t, signedIn.Token)
}
