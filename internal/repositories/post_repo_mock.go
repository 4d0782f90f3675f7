package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"relm/internal/models"
)

// MockPostRepository is an in-memory implementation of PostRepository.
type MockPostRepository struct {
	posts map[bson.ObjectID]models.Post
	mu    sync.RWMutex
}

// NewMockPostRepository creates a new instance of MockPostRepository.
func NewMockPostRepository() *MockPostRepository {
	return &MockPostRepository{
		posts: make(map[bson.ObjectID]models.Post),
	}
}

// Create adds a new post.
func (r *MockPostRepository) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if post.ID.IsZero() {
		post.ID = bson.NewObjectID()
	}
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []bson.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	r.posts[post.ID] = *post
	return nil
}

// GetByID returns a post by the hex form of its id.
func (r *MockPostRepository) GetByID(_ context.Context, id string) (*models.Post, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[objectID]
	if !ok {
		return nil, ErrNotFound
	}
	return &post, nil
}

// ListRecent returns up to limit posts, newest first.
func (r *MockPostRepository) ListRecent(_ context.Context, limit int64) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := make([]models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if int64(len(posts)) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// ListByAuthor returns the author's posts, newest first.
func (r *MockPostRepository) ListByAuthor(_ context.Context, authorID bson.ObjectID) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []models.Post
	for _, p := range r.posts {
		if p.Author == authorID {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// UpdateContent sets a new title and content on the post.
func (r *MockPostRepository) UpdateContent(_ context.Context, id bson.ObjectID, title, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return ErrNotFound
	}
	post.Title = title
	post.Content = content
	post.UpdatedAt = time.Now()
	r.posts[id] = post
	return nil
}

// Delete removes a post.
func (r *MockPostRepository) Delete(_ context.Context, id bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// SetLike adds or removes userID in the like set and returns the updated post.
func (r *MockPostRepository) SetLike(_ context.Context, postID, userID bson.ObjectID, liked bool) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}

	likes := post.Likes[:0:0]
	for _, id := range post.Likes {
		if id != userID {
			likes = append(likes, id)
		}
	}
	if liked {
		likes = append(likes, userID)
	}
	post.Likes = likes
	r.posts[postID] = post
	return &post, nil
}

// AddComment appends a comment to the post.
func (r *MockPostRepository) AddComment(_ context.Context, postID bson.ObjectID, comment models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[postID]
	if !ok {
		return ErrNotFound
	}
	post.Comments = append(post.Comments, comment)
	post.UpdatedAt = time.Now()
	r.posts[postID] = post
	return nil
}

// RemoveComment pulls a comment from the post by its id.
func (r *MockPostRepository) RemoveComment(_ context.Context, postID, commentID bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[postID]
	if !ok {
		return ErrNotFound
	}
	comments := post.Comments[:0:0]
	for _, c := range post.Comments {
		if c.ID != commentID {
			comments = append(comments, c)
		}
	}
	post.Comments = comments
	post.UpdatedAt = time.Now()
	r.posts[postID] = post
	return nil
}
