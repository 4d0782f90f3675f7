package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"relm/internal/middleware"
	"relm/internal/services"
)

// PostHandler handles HTTP requests for the post feed, likes and comments.
// Routes are registered behind the session middleware; guests may read but
// not write.
type PostHandler struct {
	service  *services.PostService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service *services.PostService, logger zerolog.Logger) *PostHandler {
	return &PostHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the post routes with the Fiber app.
func (h *PostHandler) RegisterRoutes(router fiber.Router) {
	postRoutes := router.Group("/posts")
	postRoutes.Get("/", h.HandleFeed)
	postRoutes.Post("/", h.HandleCreate)
	postRoutes.Get("/:id", h.HandleGet)
	postRoutes.Put("/:id", h.HandleEdit)
	postRoutes.Delete("/:id", h.HandleDelete)
	postRoutes.Post("/:id/like", h.HandleLike)
	postRoutes.Post("/:id/comments", h.HandleComment)
	postRoutes.Delete("/:id/comments/:commentId", h.HandleDeleteComment)
}

// HandleFeed returns recent posts, newest first. Guests may read the feed.
func (h *PostHandler) HandleFeed(c *fiber.Ctx) error {
	feed, err := h.service.Feed(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load feed")
		return serverError(c, "Could not load feed")
	}
	return c.JSON(fiber.Map{"posts": feed})
}

// HandleGet returns a single post with author and comments resolved.
func (h *PostHandler) HandleGet(c *fiber.Ctx) error {
	detail, err := h.service.GetPost(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			return postNotFound(c)
		}
		h.logger.Error().Err(err).Msg("failed to load post")
		return serverError(c, "Could not load post")
	}
	return c.JSON(detail)
}

// PostRequest represents the request body for creating or editing a post.
type PostRequest struct {
	Title   string `json:"title" form:"title" validate:"required,max=200"`
	Content string `json:"content" form:"content" validate:"required"`
}

// HandleCreate stores a new post authored by the session user.
func (h *PostHandler) HandleCreate(c *fiber.Ctx) error {
	session, ok := requireMember(c)
	if !ok {
		return nil
	}

	var req PostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	post, err := h.service.CreatePost(c.Context(), session.UserID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
		}
		h.logger.Error().Err(err).Msg("failed to create post")
		return serverError(c, "Error creating post")
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// HandleEdit updates a post's title and content. Author only.
func (h *PostHandler) HandleEdit(c *fiber.Ctx) error {
	session, ok := requireMember(c)
	if !ok {
		return nil
	}

	var req PostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.service.UpdatePost(c.Context(), session.UserID, c.Params("id"), req.Title, req.Content); err != nil {
		return h.mapPostError(c, err, "failed to edit post")
	}
	return c.JSON(fiber.Map{"message": "Post updated"})
}

// HandleDelete removes a post. Author only.
func (h *PostHandler) HandleDelete(c *fiber.Ctx) error {
	session, ok := requireMember(c)
	if !ok {
		return nil
	}

	if err := h.service.DeletePost(c.Context(), session.UserID, c.Params("id")); err != nil {
		return h.mapPostError(c, err, "failed to delete post")
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// HandleLike toggles the session user's like on a post.
func (h *PostHandler) HandleLike(c *fiber.Ctx) error {
	session, ok := requireMember(c)
	if !ok {
		return nil
	}

	liked, likesCount, err := h.service.ToggleLike(c.Context(), session.UserID, c.Params("id"))
	if err != nil {
		return h.mapPostError(c, err, "failed to toggle like")
	}

	return c.JSON(fiber.Map{
		"liked":      liked,
		"likesCount": likesCount,
	})
}

// CommentRequest represents the request body for adding a comment.
type CommentRequest struct {
	Content string `json:"content" form:"content" validate:"required,max=500"`
}

// HandleComment appends a comment to a post.
func (h *PostHandler) HandleComment(c *fiber.Ctx) error {
	session, ok := requireMember(c)
	if !ok {
		return nil
	}

	var req CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.service.AddComment(c.Context(), session.UserID, c.Params("id"), req.Content); err != nil {
		return h.mapPostError(c, err, "failed to add comment")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Comment added"})
}

// HandleDeleteComment removes a comment. Comment author only.
func (h *PostHandler) HandleDeleteComment(c *fiber.Ctx) error {
	session, ok := requireMember(c)
	if !ok {
		return nil
	}

	err := h.service.DeleteComment(c.Context(), session.UserID, c.Params("id"), c.Params("commentId"))
	if err != nil {
		if errors.Is(err, services.ErrCommentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Comment not found"})
		}
		return h.mapPostError(c, err, "failed to delete comment")
	}
	return c.JSON(fiber.Map{"message": "Comment deleted"})
}

func (h *PostHandler) mapPostError(c *fiber.Ctx, err error, logMsg string) error {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		return postNotFound(c)
	case errors.Is(err, services.ErrNotAuthor):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Unauthorized"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
	}
	h.logger.Error().Err(err).Msg(logMsg)
	return serverError(c, "Server error")
}

func postNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Post not found"})
}

// requireMember rejects guest sessions for write operations. It writes the
// response itself and reports whether the caller may proceed.
func requireMember(c *fiber.Ctx) (*services.SessionClaims, bool) {
	session := middleware.Session(c)
	if session == nil || session.IsGuest() {
		c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Sign in to continue",
		})
		return nil, false
	}
	return session, true
}
