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

func newProfileService() (*services.ProfileService, *repositories.MockUserRepository, *repositories.MockPostRepository) {
	mockUsers := repositories.NewMockUserRepository()
	mockPosts := repositories.NewMockPostRepository()
	return services.NewProfileService(mockUsers, mockPosts), mockUsers, mockPosts
}

func seedVerifiedUser(t *testing.T, repo *repositories.MockUserRepository, password string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	return seedUser(t, repo, &models.User{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: string(hashed),
		Bio:      models.DefaultBio,
		Verified: true,
	})
}

func TestProfileService_Profile(t *testing.T) {
	profileService, mockUsers, mockPosts := newProfileService()

	user := seedVerifiedUser(t, mockUsers, "password123")
	postService := services.NewPostService(mockPosts, mockUsers, nil, zerolog.Nop())
	post, err := postService.CreatePost(context.Background(), user.ID.Hex(), "Mine", "content")
	assert.NoError(t, err)

	page, err := profileService.Profile(context.Background(), user.ID.Hex())
	assert.NoError(t, err)
	assert.Equal(t, "alice", page.User.Username)
	assert.Len(t, page.Posts, 1)
	assert.Equal(t, post.ID, page.Posts[0].Post.ID)
	assert.Equal(t, "alice", page.Posts[0].AuthorInfo.Username)

	_, err = profileService.Profile(context.Background(), "64b0c0ffee0000000000aaaa")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestProfileService_UpdateProfile(t *testing.T) {
	profileService, mockUsers, _ := newProfileService()

	user := seedVerifiedUser(t, mockUsers, "password123")

	updated, err := profileService.UpdateProfile(context.Background(), user.ID.Hex(), services.UpdateProfileParams{
		Name:     "Alice Liddell",
		Username: "  Wonder  ",
		Bio:      "down the rabbit hole",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.Name)
	assert.Equal(t, "wonder", updated.Username)
	assert.Equal(t, "down the rabbit hole", updated.Bio)

	// Empty fields leave stored values untouched.
	updated, err = profileService.UpdateProfile(context.Background(), user.ID.Hex(), services.UpdateProfileParams{
		AvatarURL: "/uploads/new.png",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.Name)
	assert.Equal(t, "wonder", updated.Username)
	assert.Equal(t, "/uploads/new.png", updated.Image)
}

func TestProfileService_UpdateProfileRejectsTakenUsername(t *testing.T) {
	profileService, mockUsers, _ := newProfileService()

	user := seedVerifiedUser(t, mockUsers, "password123")
	seedUser(t, mockUsers, &models.User{Username: "bob", Email: "bob@example.com"})

	_, err := profileService.UpdateProfile(context.Background(), user.ID.Hex(), services.UpdateProfileParams{
		Username: "BOB",
	})
	assert.ErrorIs(t, err, services.ErrUserExists)
}

func TestProfileService_UpdateSettingsPasswordChange(t *testing.T) {
	profileService, mockUsers, _ := newProfileService()

	user := seedVerifiedUser(t, mockUsers, "password123")

	// Wrong current password.
	_, err := profileService.UpdateSettings(context.Background(), user.ID.Hex(), services.UpdateSettingsParams{
		CurrentPassword: "wrongpassword",
		NewPassword:     "newpassword1",
		ConfirmPassword: "newpassword1",
	})
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// New pair does not agree.
	_, err = profileService.UpdateSettings(context.Background(), user.ID.Hex(), services.UpdateSettingsParams{
		CurrentPassword: "password123",
		NewPassword:     "newpassword1",
		ConfirmPassword: "different",
	})
	assert.ErrorIs(t, err, services.ErrPasswordMismatch)

	updated, err := profileService.UpdateSettings(context.Background(), user.ID.Hex(), services.UpdateSettingsParams{
		Website:         "https://alice.example.com",
		CurrentPassword: "password123",
		NewPassword:     "newpassword1",
		ConfirmPassword: "newpassword1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://alice.example.com", updated.Website)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("newpassword1")))

	// Leaving all password fields empty skips the password checks entirely.
	updated, err = profileService.UpdateSettings(context.Background(), user.ID.Hex(), services.UpdateSettingsParams{
		Name: "Alice L",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Alice L", updated.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("newpassword1")))
}
