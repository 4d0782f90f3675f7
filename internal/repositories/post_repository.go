package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"relm/internal/models"
)

// PostRepository defines the interface for post data access.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// ListRecent returns up to limit posts, newest first.
	ListRecent(ctx context.Context, limit int64) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID bson.ObjectID) ([]models.Post, error)
	UpdateContent(ctx context.Context, id bson.ObjectID, title, content string) error
	Delete(ctx context.Context, id bson.ObjectID) error
	// SetLike adds or removes userID in the like set and returns the updated
	// post. Adding is idempotent (set semantics).
	SetLike(ctx context.Context, postID, userID bson.ObjectID, liked bool) (*models.Post, error)
	AddComment(ctx context.Context, postID bson.ObjectID, comment models.Comment) error
	RemoveComment(ctx context.Context, postID, commentID bson.ObjectID) error
}
