package services_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"relm/internal/models"
	"relm/internal/repositories"
	"relm/internal/services"
)

func newPostService() (*services.PostService, *repositories.MockUserRepository, *repositories.MockPostRepository) {
	mockUsers := repositories.NewMockUserRepository()
	mockPosts := repositories.NewMockPostRepository()
	postService := services.NewPostService(mockPosts, mockUsers, nil, zerolog.Nop())
	return postService, mockUsers, mockPosts
}

func TestPostService_CreatePost(t *testing.T) {
	postService, mockUsers, _ := newPostService()

	author := seedUser(t, mockUsers, &models.User{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
	})

	post, err := postService.CreatePost(context.Background(), author.ID.Hex(), "  First Post  ", "  hello world  ")
	assert.NoError(t, err)
	assert.Equal(t, "First Post", post.Title)
	assert.Equal(t, "hello world", post.Content)
	assert.Equal(t, author.ID, post.Author)

	// The post is recorded on the author's document.
	stored, err := mockUsers.GetByID(context.Background(), author.ID.Hex())
	assert.NoError(t, err)
	assert.Contains(t, stored.Posts, post.ID)

	_, err = postService.CreatePost(context.Background(), "64b0c0ffee0000000000aaaa", "title", "content")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestPostService_FeedResolvesAuthors(t *testing.T) {
	postService, mockUsers, _ := newPostService()

	alice := seedUser(t, mockUsers, &models.User{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
		Image:    "alice.png",
	})
	bob := seedUser(t, mockUsers, &models.User{
		Username: "bob",
		Name:     "Bob",
		Email:    "bob@example.com",
	})

	_, err := postService.CreatePost(context.Background(), alice.ID.Hex(), "A", "by alice")
	assert.NoError(t, err)
	_, err = postService.CreatePost(context.Background(), bob.ID.Hex(), "B", "by bob")
	assert.NoError(t, err)

	feed, err := postService.Feed(context.Background())
	assert.NoError(t, err)
	assert.Len(t, feed, 2)

	authorsByTitle := make(map[string]models.AuthorSummary)
	for _, entry := range feed {
		authorsByTitle[entry.Post.Title] = entry.AuthorInfo
	}
	assert.Equal(t, "alice", authorsByTitle["A"].Username)
	assert.Equal(t, "alice.png", authorsByTitle["A"].Image)
	assert.Equal(t, "bob", authorsByTitle["B"].Username)
}

func TestPostService_UpdateAndDeleteRequireAuthor(t *testing.T) {
	postService, mockUsers, mockPosts := newPostService()

	alice := seedUser(t, mockUsers, &models.User{Username: "alice", Email: "alice@example.com"})
	bob := seedUser(t, mockUsers, &models.User{Username: "bob", Email: "bob@example.com"})

	post, err := postService.CreatePost(context.Background(), alice.ID.Hex(), "Title", "content")
	assert.NoError(t, err)

	err = postService.UpdatePost(context.Background(), bob.ID.Hex(), post.ID.Hex(), "Hacked", "by bob")
	assert.ErrorIs(t, err, services.ErrNotAuthor)

	err = postService.UpdatePost(context.Background(), alice.ID.Hex(), post.ID.Hex(), "New Title", "new content")
	assert.NoError(t, err)

	stored, err := mockPosts.GetByID(context.Background(), post.ID.Hex())
	assert.NoError(t, err)
	assert.Equal(t, "New Title", stored.Title)

	err = postService.DeletePost(context.Background(), bob.ID.Hex(), post.ID.Hex())
	assert.ErrorIs(t, err, services.ErrNotAuthor)

	err = postService.DeletePost(context.Background(), alice.ID.Hex(), post.ID.Hex())
	assert.NoError(t, err)

	_, err = mockPosts.GetByID(context.Background(), post.ID.Hex())
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	// The author's owned list no longer references the post.
	owner, err := mockUsers.GetByID(context.Background(), alice.ID.Hex())
	assert.NoError(t, err)
	assert.NotContains(t, owner.Posts, post.ID)

	err = postService.DeletePost(context.Background(), alice.ID.Hex(), post.ID.Hex())
	assert.ErrorIs(t, err, services.ErrPostNotFound)
}

func TestPostService_ToggleLike(t *testing.T) {
	postService, mockUsers, _ := newPostService()

	alice := seedUser(t, mockUsers, &models.User{Username: "alice", Email: "alice@example.com"})
	bob := seedUser(t, mockUsers, &models.User{Username: "bob", Email: "bob@example.com"})

	post, err := postService.CreatePost(context.Background(), alice.ID.Hex(), "Title", "content")
	assert.NoError(t, err)

	liked, count, err := postService.ToggleLike(context.Background(), bob.ID.Hex(), post.ID.Hex())
	assert.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, count)

	liked, count, err = postService.ToggleLike(context.Background(), alice.ID.Hex(), post.ID.Hex())
	assert.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 2, count)

	liked, count, err = postService.ToggleLike(context.Background(), bob.ID.Hex(), post.ID.Hex())
	assert.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 1, count)

	_, _, err = postService.ToggleLike(context.Background(), bob.ID.Hex(), "64b0c0ffee0000000000bbbb")
	assert.ErrorIs(t, err, services.ErrPostNotFound)
}

func TestPostService_Comments(t *testing.T) {
	postService, mockUsers, _ := newPostService()

	alice := seedUser(t, mockUsers, &models.User{Username: "alice", Name: "Alice", Email: "alice@example.com"})
	bob := seedUser(t, mockUsers, &models.User{Username: "bob", Name: "Bob", Email: "bob@example.com"})

	post, err := postService.CreatePost(context.Background(), alice.ID.Hex(), "Title", "content")
	assert.NoError(t, err)

	err = postService.AddComment(context.Background(), bob.ID.Hex(), post.ID.Hex(), "  nice post  ")
	assert.NoError(t, err)

	detail, err := postService.GetPost(context.Background(), post.ID.Hex())
	assert.NoError(t, err)
	assert.Len(t, detail.Comments, 1)
	assert.Equal(t, "nice post", detail.Comments[0].Content)
	assert.Equal(t, "bob", detail.Comments[0].AuthorInfo.Username)
	assert.Equal(t, "alice", detail.AuthorInfo.Username)

	commentID := detail.Comments[0].ID.Hex()

	// Only the comment's author may remove it.
	err = postService.DeleteComment(context.Background(), alice.ID.Hex(), post.ID.Hex(), commentID)
	assert.ErrorIs(t, err, services.ErrNotAuthor)

	err = postService.DeleteComment(context.Background(), bob.ID.Hex(), post.ID.Hex(), commentID)
	assert.NoError(t, err)

	detail, err = postService.GetPost(context.Background(), post.ID.Hex())
	assert.NoError(t, err)
	assert.Empty(t, detail.Comments)

	err = postService.DeleteComment(context.Background(), bob.ID.Hex(), post.ID.Hex(), commentID)
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
}
