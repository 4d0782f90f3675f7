package handlers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog"

	"relm/internal/middleware"
	"relm/internal/services"
	"relm/pkg/avatar"
)

const dateOfBirthLayout = "2006-01-02"

// AuthHandler handles HTTP requests for the account flows.
type AuthHandler struct {
	authService  *services.AuthService
	tokenService *services.TokenService
	avatars      *avatar.Store
	cookies      middleware.CookieManager
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. avatars may be nil; uploaded
// images are then ignored.
func NewAuthHandler(
	authService *services.AuthService,
	tokenService *services.TokenService,
	avatars *avatar.Store,
	cookies middleware.CookieManager,
	logger zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenService: tokenService,
		avatars:      avatars,
		cookies:      cookies,
		validate:     validator.New(),
		logger:       logger,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
// The whole group sits behind a rate limiter so OTP issuance and code or
// password guessing cannot be hammered.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth", limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
	}))

	authRoutes.Post("/signup", h.HandleSignup)
	authRoutes.Post("/verify-email", h.HandleVerifyEmail)
	authRoutes.Post("/signin", h.HandleSignin)
	authRoutes.Get("/guest", h.HandleGuest)
	authRoutes.Get("/signout", h.HandleSignout)
	authRoutes.Post("/forget", h.HandleForget)
	authRoutes.Post("/reset-password/:user", h.HandleReset)
}

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Username    string `json:"username" form:"username" validate:"required,min=3,max=100"`
	Name        string `json:"name" form:"name" validate:"required,max=100"`
	Email       string `json:"email" form:"email" validate:"required,email"`
	Password    string `json:"password" form:"password" validate:"required,min=6"`
	DateOfBirth string `json:"dateOfBirth" form:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
}

// HandleSignup creates an unverified account and responds with the pending
// verification step. No session cookie is set here.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	var dateOfBirth time.Time
	if req.DateOfBirth != "" {
		dateOfBirth, _ = time.Parse(dateOfBirthLayout, req.DateOfBirth)
	}

	avatarURL := h.storeAvatar(c)

	userID, err := h.authService.SignUp(c.Context(), services.SignUpParams{
		Username:    req.Username,
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		DateOfBirth: dateOfBirth,
		AvatarURL:   avatarURL,
	})
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "User already exists",
			})
		}
		h.logger.Error().Err(err).Msg("signup failed")
		return serverError(c, "Could not sign up")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"next":   "verify",
		"userId": userID,
	})
}

// VerifyEmailRequest represents the request body for OTP submission.
type VerifyEmailRequest struct {
	UserID string `json:"userId" form:"userId" validate:"required"`
	Code   string `json:"code" form:"code" validate:"required,len=6,numeric"`
}

// HandleVerifyEmail consumes an OTP. A verify_email code ends with an
// authenticated session; a reset_password code hands the client on to the
// reset step without one.
func (h *AuthHandler) HandleVerifyEmail(c *fiber.Ctx) error {
	var req VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.authService.VerifyEmail(c.Context(), req.UserID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
		case errors.Is(err, services.ErrOTPExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "OTP expired"})
		case errors.Is(err, services.ErrInvalidOTP):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid OTP"})
		case errors.Is(err, services.ErrInvalidOTPRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid OTP request"})
		}
		h.logger.Error().Err(err).Msg("OTP verification failed")
		return serverError(c, "Could not verify code")
	}

	if result.Next == "reset" {
		return c.JSON(fiber.Map{
			"next":   "reset",
			"userId": result.UserID,
		})
	}

	h.cookies.Set(c, result.Token, result.MaxAge)
	return c.JSON(fiber.Map{
		"message": "Verification successful",
		"next":    "home",
	})
}

// SigninRequest represents the request body for signin.
type SigninRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Remember bool   `json:"remember" form:"remember"`
}

// HandleSignin authenticates and either sets a session cookie or bounces an
// unverified account back to the verification step.
func (h *AuthHandler) HandleSignin(c *fiber.Ctx) error {
	var req SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.authService.SignIn(c.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid email or password",
			})
		}
		h.logger.Error().Err(err).Msg("signin failed")
		return serverError(c, "Could not sign in")
	}

	if result.PendingUserID != "" {
		return c.JSON(fiber.Map{
			"next": "verify",
			"user": result.PendingUserID,
		})
	}

	h.cookies.Set(c, result.Token, result.MaxAge)
	return c.JSON(fiber.Map{
		"message": "Signed in",
		"next":    "home",
	})
}

// HandleGuest issues a short-lived capability-free session.
func (h *AuthHandler) HandleGuest(c *fiber.Ctx) error {
	token, maxAge, err := h.tokenService.IssueGuest()
	if err != nil {
		h.logger.Error().Err(err).Msg("guest token issuance failed")
		return serverError(c, "Could not create guest session")
	}

	h.cookies.Set(c, token, maxAge)
	return c.JSON(fiber.Map{"next": "home"})
}

// HandleSignout clears the session cookie. Idempotent; there is no
// server-side session state to invalidate.
func (h *AuthHandler) HandleSignout(c *fiber.Ctx) error {
	h.cookies.Clear(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// ForgetRequest represents the request body for the forgot-password step.
type ForgetRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// HandleForget starts the password reset flow by mailing a reset code.
func (h *AuthHandler) HandleForget(c *fiber.Ctx) error {
	var req ForgetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	userID, err := h.authService.Forgot(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "No account found with this email",
			})
		}
		h.logger.Error().Err(err).Msg("forgot password failed")
		return serverError(c, "Could not start password reset")
	}

	return c.JSON(fiber.Map{
		"next":   "verify",
		"userId": userID,
	})
}

// ResetRequest represents the request body for setting a new password.
type ResetRequest struct {
	Password        string `json:"password" form:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required"`
}

// HandleReset stores the new password after a proven reset code. The client
// is sent back to signin; no session is issued.
func (h *AuthHandler) HandleReset(c *fiber.Ctx) error {
	var req ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	err := h.authService.ResetPassword(c.Context(), c.Params("user"), req.Password, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "User does not exist"})
		case errors.Is(err, services.ErrInvalidOTPRequest):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Unauthorised"})
		case errors.Is(err, services.ErrPasswordMismatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Passwords do not match"})
		}
		h.logger.Error().Err(err).Msg("password reset failed")
		return serverError(c, "Could not reset password")
	}

	return c.JSON(fiber.Map{"next": "signin"})
}

// storeAvatar saves an optional multipart "image" upload and returns its
// public URL, or empty when absent or on failure. Upload failures do not
// block the surrounding flow.
func (h *AuthHandler) storeAvatar(c *fiber.Ctx) string {
	if h.avatars == nil {
		return ""
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return ""
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to open avatar upload")
		return ""
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read avatar upload")
		return ""
	}

	url, err := h.avatars.Save(data, filepath.Ext(fileHeader.Filename))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to store avatar upload")
		return ""
	}
	return url
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func serverError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": message,
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badRequest(c, "Validation failed", err)
	}

	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
