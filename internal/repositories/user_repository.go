package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"relm/internal/models"
)

// Sentinel errors shared by all repository implementations. Services match on
// these instead of driver-specific errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.User, error)
	// Update replaces the stored document with user. Cleared OTP fields are
	// dropped from the document, keeping the hash/expiry pairing invariant.
	Update(ctx context.Context, user *models.User) error
	// SetOTP overwrites any pending code in a single write.
	SetOTP(ctx context.Context, id bson.ObjectID, hash string, expires time.Time, purpose string) error
	AddPost(ctx context.Context, userID, postID bson.ObjectID) error
	RemovePost(ctx context.Context, userID, postID bson.ObjectID) error
}
