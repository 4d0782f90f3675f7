package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"relm/internal/models"
	"relm/internal/repositories"
	"relm/pkg/rabbitmq"
)

// Posts returned by the feed in one page.
const feedLimit = 50

// PostService handles business logic for the post feed, likes and comments.
type PostService struct {
	posts    repositories.PostRepository
	users    repositories.UserRepository
	mqClient *rabbitmq.Client
	logger   zerolog.Logger
}

// NewPostService creates a new PostService. mqClient may be nil.
func NewPostService(
	posts repositories.PostRepository,
	users repositories.UserRepository,
	mqClient *rabbitmq.Client,
	logger zerolog.Logger,
) *PostService {
	return &PostService{
		posts:    posts,
		users:    users,
		mqClient: mqClient,
		logger:   logger,
	}
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	models.Comment
	AuthorInfo models.AuthorSummary `json:"authorInfo"`
}

// PostDetail is a single post with author, likes and comment authors resolved.
type PostDetail struct {
	Post       models.Post          `json:"post"`
	AuthorInfo models.AuthorSummary `json:"author"`
	Comments   []CommentView        `json:"comments"`
	LikesCount int                  `json:"likesCount"`
}

// Feed returns recent posts, newest first, with author summaries attached.
func (s *PostService) Feed(ctx context.Context) ([]models.FeedPost, error) {
	posts, err := s.posts.ListRecent(ctx, feedLimit)
	if err != nil {
		return nil, err
	}
	return s.resolveAuthors(ctx, posts)
}

// GetPost returns one post with its author and comment authors resolved.
func (s *PostService) GetPost(ctx context.Context, postID string) (*PostDetail, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	ids := []bson.ObjectID{post.Author}
	for _, c := range post.Comments {
		ids = append(ids, c.Author)
	}
	authors, err := s.authorIndex(ctx, ids)
	if err != nil {
		return nil, err
	}

	comments := make([]CommentView, 0, len(post.Comments))
	for _, c := range post.Comments {
		comments = append(comments, CommentView{Comment: c, AuthorInfo: authors[c.Author]})
	}

	return &PostDetail{
		Post:       *post,
		AuthorInfo: authors[post.Author],
		Comments:   comments,
		LikesCount: len(post.Likes),
	}, nil
}

// CreatePost stores a new post and records it on the author's user document.
func (s *PostService) CreatePost(ctx context.Context, authorID, title, content string) (*models.Post, error) {
	author, err := s.lookupUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Author:  author.ID,
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	if err := s.users.AddPost(ctx, author.ID, post.ID); err != nil {
		return nil, err
	}

	s.publishEvent("post.created", map[string]interface{}{
		"postId":   post.ID.Hex(),
		"author":   author.ID.Hex(),
		"username": author.Username,
	})

	return post, nil
}

// UpdatePost edits a post. Only the author may edit.
func (s *PostService) UpdatePost(ctx context.Context, authorID, postID, title, content string) error {
	post, err := s.authoredPost(ctx, authorID, postID)
	if err != nil {
		return err
	}
	return s.posts.UpdateContent(ctx, post.ID, strings.TrimSpace(title), strings.TrimSpace(content))
}

// DeletePost removes a post and pulls it from the author's owned list. Only
// the author may delete.
func (s *PostService) DeletePost(ctx context.Context, authorID, postID string) error {
	post, err := s.authoredPost(ctx, authorID, postID)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	return s.users.RemovePost(ctx, post.Author, post.ID)
}

// ToggleLike flips the caller's like on a post and returns the new state and
// count.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID string) (bool, int, error) {
	uid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return false, 0, ErrUserNotFound
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, 0, ErrPostNotFound
		}
		return false, 0, err
	}

	liked := !post.LikedBy(uid)
	updated, err := s.posts.SetLike(ctx, post.ID, uid, liked)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, 0, ErrPostNotFound
		}
		return false, 0, err
	}

	if liked {
		s.publishEvent("post.liked", map[string]interface{}{
			"postId": post.ID.Hex(),
			"userId": userID,
		})
	}

	return liked, len(updated.Likes), nil
}

// AddComment appends a comment by the caller to a post.
func (s *PostService) AddComment(ctx context.Context, userID, postID, content string) error {
	uid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPostNotFound
		}
		return err
	}

	comment := models.Comment{
		ID:        bson.NewObjectID(),
		Author:    uid,
		Content:   strings.TrimSpace(content),
		CreatedAt: time.Now(),
	}
	return s.posts.AddComment(ctx, post.ID, comment)
}

// DeleteComment removes a comment. Only the comment's author may delete it.
func (s *PostService) DeleteComment(ctx context.Context, userID, postID, commentID string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPostNotFound
		}
		return err
	}

	cid, err := bson.ObjectIDFromHex(commentID)
	if err != nil {
		return ErrCommentNotFound
	}

	for _, c := range post.Comments {
		if c.ID == cid {
			if c.Author.Hex() != userID {
				return ErrNotAuthor
			}
			return s.posts.RemoveComment(ctx, post.ID, cid)
		}
	}
	return ErrCommentNotFound
}

// authoredPost fetches a post and checks the caller owns it.
func (s *PostService) authoredPost(ctx context.Context, authorID, postID string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if post.Author.Hex() != authorID {
		return nil, ErrNotAuthor
	}
	return post, nil
}

func (s *PostService) lookupUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// resolveAuthors maps posts to feed entries with their author summaries.
func (s *PostService) resolveAuthors(ctx context.Context, posts []models.Post) ([]models.FeedPost, error) {
	ids := make([]bson.ObjectID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.Author)
	}
	authors, err := s.authorIndex(ctx, ids)
	if err != nil {
		return nil, err
	}

	feed := make([]models.FeedPost, 0, len(posts))
	for _, p := range posts {
		feed = append(feed, models.FeedPost{
			Post:       p,
			AuthorInfo: authors[p.Author],
			LikesCount: len(p.Likes),
		})
	}
	return feed, nil
}

func (s *PostService) authorIndex(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]models.AuthorSummary, error) {
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	index := make(map[bson.ObjectID]models.AuthorSummary, len(users))
	for i := range users {
		index[users[i].ID] = users[i].Summary()
	}
	return index, nil
}

func (s *PostService) publishEvent(routingKey string, payload map[string]interface{}) {
	if s.mqClient == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", routingKey).Msg("failed to marshal event")
		return
	}
	if err := s.mqClient.Publish(routingKey, body); err != nil {
		s.logger.Error().Err(err).Str("event", routingKey).Msg("failed to publish event")
	}
}
