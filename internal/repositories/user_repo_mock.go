package repositories

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"relm/internal/models"
)

// MockUserRepository is an in-memory implementation of UserRepository.
// It enforces the same email/username uniqueness the Mongo indexes do.
type MockUserRepository struct {
	users map[bson.ObjectID]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[bson.ObjectID]models.User),
	}
}

// Create adds a new user, rejecting duplicate emails and usernames.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return ErrDuplicate
		}
	}

	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Posts == nil {
		user.Posts = []bson.ObjectID{}
	}
	r.users[user.ID] = *user
	return nil
}

// GetByID returns a user by the hex form of its id.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[objectID]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

// GetByEmail returns a user by email.
func (r *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

// GetByUsername returns a user by username.
func (r *MockUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

// GetByIDs returns the users for the given ids, skipping unknown ones.
func (r *MockUserRepository) GetByIDs(_ context.Context, ids []bson.ObjectID) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// Update replaces a stored user.
func (r *MockUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}

	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email || u.Username == user.Username {
			return ErrDuplicate
		}
	}

	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

// SetOTP overwrites the stored OTP fields.
func (r *MockUserRepository) SetOTP(_ context.Context, id bson.ObjectID, hash string, expires time.Time, purpose string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.OTPHash = hash
	user.OTPExpires = expires
	user.OTPPurpose = purpose
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}

// AddPost appends a post id to the user's owned posts.
func (r *MockUserRepository) AddPost(_ context.Context, userID, postID bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.Posts = append(user.Posts, postID)
	r.users[userID] = user
	return nil
}

// RemovePost pulls a post id from the user's owned posts.
func (r *MockUserRepository) RemovePost(_ context.Context, userID, postID bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	posts := user.Posts[:0]
	for _, id := range user.Posts {
		if id != postID {
			posts = append(posts, id)
		}
	}
	user.Posts = posts
	r.users[userID] = user
	return nil
}
