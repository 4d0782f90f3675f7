package handlers

import (
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"relm/internal/middleware"
	"relm/internal/services"
	"relm/pkg/avatar"
)

// ProfileHandler handles HTTP requests for viewing and editing profiles.
type ProfileHandler struct {
	service  *services.ProfileService
	avatars  *avatar.Store
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewProfileHandler creates a new ProfileHandler. avatars may be nil.
func NewProfileHandler(service *services.ProfileService, avatars *avatar.Store, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service:  service,
		avatars:  avatars,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the profile routes with the Fiber app.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	profileRoutes := router.Group("/profile")
	profileRoutes.Get("/", h.HandleProfile)
	profileRoutes.Get("/about", h.HandleAbout)
	profileRoutes.Put("/", h.HandleEdit)
	profileRoutes.Put("/settings", h.HandleSettings)
}

// HandleProfile returns the session user's profile and posts. Guests have no
// profile and get a distinct response rather than an auth failure.
func (h *ProfileHandler) HandleProfile(c *fiber.Ctx) error {
	page, done := h.loadProfile(c)
	if done {
		return nil
	}

	return c.JSON(page)
}

// HandleAbout returns the same data shaped for the about page.
func (h *ProfileHandler) HandleAbout(c *fiber.Ctx) error {
	page, done := h.loadProfile(c)
	if done {
		return nil
	}

	return c.JSON(fiber.Map{
		"user":  page.User,
		"posts": page.Posts,
	})
}

// ProfileEditRequest represents the request body for the profile edit form.
type ProfileEditRequest struct {
	Name     string `json:"name" form:"name" validate:"omitempty,max=100"`
	Username string `json:"username" form:"username" validate:"omitempty,min=3,max=100"`
	Bio      string `json:"bio" form:"bio" validate:"omitempty,max=120"`
}

// HandleEdit updates the display fields of the profile.
func (h *ProfileHandler) HandleEdit(c *fiber.Ctx) error {
	session, ok := requireProfileOwner(c)
	if !ok {
		return nil
	}

	var req ProfileEditRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	user, err := h.service.UpdateProfile(c.Context(), session.UserID, services.UpdateProfileParams{
		Name:      req.Name,
		Username:  req.Username,
		Bio:       req.Bio,
		AvatarURL: h.storeAvatar(c),
	})
	if err != nil {
		return h.mapProfileError(c, err, "failed to edit profile")
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated",
		"user":    user,
	})
}

// SettingsRequest represents the request body for the settings form.
type SettingsRequest struct {
	Name            string `json:"name" form:"name" validate:"omitempty,max=100"`
	Username        string `json:"username" form:"username" validate:"omitempty,min=3,max=100"`
	DateOfBirth     string `json:"dateOfBirth" form:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Website         string `json:"website" form:"website" validate:"omitempty,url"`
	Bio             string `json:"bio" form:"bio" validate:"omitempty,max=120"`
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword" validate:"omitempty,min=6"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// HandleSettings updates the full settings form, including an optional
// password change.
func (h *ProfileHandler) HandleSettings(c *fiber.Ctx) error {
	session, ok := requireProfileOwner(c)
	if !ok {
		return nil
	}

	var req SettingsRequest
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

	user, err := h.service.UpdateSettings(c.Context(), session.UserID, services.UpdateSettingsParams{
		Name:            req.Name,
		Username:        req.Username,
		DateOfBirth:     dateOfBirth,
		Website:         req.Website,
		Bio:             req.Bio,
		AvatarURL:       h.storeAvatar(c),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Current password is incorrect"})
		}
		if errors.Is(err, services.ErrPasswordMismatch) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "New passwords do not match"})
		}
		return h.mapProfileError(c, err, "failed to update settings")
	}

	return c.JSON(fiber.Map{
		"message": "Settings updated",
		"user":    user,
	})
}

// loadProfile resolves the session user's profile page, writing the response
// itself for guests and unknown users. done reports whether a response has
// already been sent.
func (h *ProfileHandler) loadProfile(c *fiber.Ctx) (*services.ProfilePage, bool) {
	session, ok := requireProfileOwner(c)
	if !ok {
		return nil, true
	}

	page, err := h.service.Profile(c.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			// Token is valid but the account is gone; send them to signin.
			c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"next": "signin"})
			return nil, true
		}
		h.logger.Error().Err(err).Msg("failed to load profile")
		serverError(c, "Could not load profile")
		return nil, true
	}

	return page, false
}

func (h *ProfileHandler) mapProfileError(c *fiber.Ctx, err error, logMsg string) error {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
	case errors.Is(err, services.ErrUserExists):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Username already taken"})
	}
	h.logger.Error().Err(err).Msg(logMsg)
	return serverError(c, "Server error")
}

// storeAvatar saves an optional multipart "image" upload, mirroring the
// signup flow.
func (h *ProfileHandler) storeAvatar(c *fiber.Ctx) string {
	if h.avatars == nil {
		return ""
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return ""
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ""
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ""
	}

	url, err := h.avatars.Save(data, filepath.Ext(fileHeader.Filename))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to store avatar upload")
		return ""
	}
	return url
}

// requireProfileOwner rejects guest sessions with the guest-specific message.
// Guests are authenticated enough to pass the session middleware but own no
// profile.
func requireProfileOwner(c *fiber.Ctx) (*services.SessionClaims, bool) {
	session := middleware.Session(c)
	if session == nil || session.IsGuest() {
		c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Guest accounts do not have profiles. Sign in to continue.",
		})
		return nil, false
	}
	return session, true
}
