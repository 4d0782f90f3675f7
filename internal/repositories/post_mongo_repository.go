package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"relm/internal/models"
)

const postCollection = "posts"

// MongoPostRepository is a Mongo implementation of PostRepository.
type MongoPostRepository struct {
	db *mongo.Database
}

// NewMongoPostRepository creates a new instance of MongoPostRepository.
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{db: db}
}

// Create inserts a new post document.
func (r *MongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []bson.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}

	result, err := r.db.Collection(postCollection).InsertOne(ctx, post)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return errors.New("failed to convert inserted ID to ObjectID")
	}
	post.ID = objectID

	return nil
}

// GetByID retrieves a post by the hex form of its ObjectID.
func (r *MongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var post models.Post
	if err := r.db.Collection(postCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post %s: %w", id, err)
	}
	return &post, nil
}

// ListRecent returns up to limit posts, newest first.
func (r *MongoPostRepository) ListRecent(ctx context.Context, limit int64) ([]models.Post, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.db.Collection(postCollection).Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor returns the author's posts, newest first.
func (r *MongoPostRepository) ListByAuthor(ctx context.Context, authorID bson.ObjectID) ([]models.Post, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.db.Collection(postCollection).Find(ctx, bson.M{"author": authorID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author %s: %w", authorID.Hex(), err)
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

// UpdateContent sets a new title and content on the post.
func (r *MongoPostRepository) UpdateContent(ctx context.Context, id bson.ObjectID, title, content string) error {
	result, err := r.db.Collection(postCollection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"title": title, "content": content, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update post %s: %w", id.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the post document.
func (r *MongoPostRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	result, err := r.db.Collection(postCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLike adds or removes userID in the like set and returns the updated post.
func (r *MongoPostRepository) SetLike(ctx context.Context, postID, userID bson.ObjectID, liked bool) (*models.Post, error) {
	update := bson.M{"$pull": bson.M{"likes": userID}}
	if liked {
		update = bson.M{"$addToSet": bson.M{"likes": userID}}
	}

	result := r.db.Collection(postCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": postID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var post models.Post
	if err := result.Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to toggle like on post %s: %w", postID.Hex(), err)
	}
	return &post, nil
}

// AddComment appends a comment to the post.
func (r *MongoPostRepository) AddComment(ctx context.Context, postID bson.ObjectID, comment models.Comment) error {
	result, err := r.db.Collection(postCollection).UpdateOne(
		ctx,
		bson.M{"_id": postID},
		bson.M{"$push": bson.M{"comments": comment}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to add comment to post %s: %w", postID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveComment pulls a comment from the post by its id.
func (r *MongoPostRepository) RemoveComment(ctx context.Context, postID, commentID bson.ObjectID) error {
	result, err := r.db.Collection(postCollection).UpdateOne(
		ctx,
		bson.M{"_id": postID},
		bson.M{"$pull": bson.M{"comments": bson.M{"_id": commentID}}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove comment from post %s: %w", postID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
