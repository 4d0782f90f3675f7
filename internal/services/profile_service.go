package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"relm/internal/models"
	"relm/internal/repositories"
)

// ProfileService handles business logic for viewing and editing profiles.
type ProfileService struct {
	users repositories.UserRepository
	posts repositories.PostRepository
}

// NewProfileService creates a new ProfileService.
func NewProfileService(users repositories.UserRepository, posts repositories.PostRepository) *ProfileService {
	return &ProfileService{
		users: users,
		posts: posts,
	}
}

// ProfilePage is a user together with their posts.
type ProfilePage struct {
	User  models.User       `json:"user"`
	Posts []models.FeedPost `json:"posts"`
}

// UpdateProfileParams are the fields editable from the profile page. Empty
// strings leave the stored value untouched; AvatarURL is already stored by
// the caller.
type UpdateProfileParams struct {
	Name      string
	Username  string
	Bio       string
	AvatarURL string
}

// UpdateSettingsParams are the fields editable from the settings page,
// optionally including a password change. A password change requires all
// three password fields.
type UpdateSettingsParams struct {
	Name            string
	Username        string
	DateOfBirth     time.Time
	Website         string
	Bio             string
	AvatarURL       string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// Profile returns the user's record and their posts.
func (s *ProfileService) Profile(ctx context.Context, userID string) (*ProfilePage, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	posts, err := s.posts.ListByAuthor(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	feed := make([]models.FeedPost, 0, len(posts))
	summary := user.Summary()
	for _, p := range posts {
		feed = append(feed, models.FeedPost{
			Post:       p,
			AuthorInfo: summary,
			LikesCount: len(p.Likes),
		})
	}

	return &ProfilePage{User: *user, Posts: feed}, nil
}

// UpdateProfile edits the display fields of a profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	applyProfileFields(user, params.Name, params.Username, params.Bio, params.AvatarURL)

	if err := s.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateSettings edits the full settings form, including an optional password
// change. Changing the password requires the current one to match and the new
// pair to agree.
func (s *ProfileService) UpdateSettings(ctx context.Context, userID string, params UpdateSettingsParams) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	changingPassword := params.CurrentPassword != "" || params.NewPassword != "" || params.ConfirmPassword != ""
	if changingPassword {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(params.CurrentPassword)); err != nil {
			return nil, ErrInvalidCredentials
		}
		if params.NewPassword == "" || params.NewPassword != params.ConfirmPassword {
			return nil, ErrPasswordMismatch
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	applyProfileFields(user, params.Name, params.Username, params.Bio, params.AvatarURL)
	if !params.DateOfBirth.IsZero() {
		user.DateOfBirth = params.DateOfBirth
	}
	if params.Website != "" {
		user.Website = strings.TrimSpace(params.Website)
	}

	if err := s.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ProfileService) saveUser(ctx context.Context, user *models.User) error {
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func applyProfileFields(user *models.User, name, username, bio, avatarURL string) {
	if name != "" {
		user.Name = strings.TrimSpace(name)
	}
	if username != "" {
		user.Username = strings.ToLower(strings.TrimSpace(username))
	}
	if bio != "" {
		user.Bio = strings.TrimSpace(bio)
	}
	if avatarURL != "" {
		user.Image = avatarURL
	}
}
