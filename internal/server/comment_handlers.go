package server

import (
	"eventsocial/internal/service"
	"eventsocial/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Content string `json:"content" form:"content" validate:"required,max=1000"`
}

// CreateComment handles POST /api/posts/:postId/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Param request body commentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := validation.Struct(req); err != nil {
		return respondError(c, err)
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:  currentUserID(c),
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/posts/:postId/comments
// @Summary List comments on a post, newest first
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {array} models.Comment
// @Router /posts/{postId}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	page := parsePagination(c)

	comments, err := s.commentService.ListComments(c.UserContext(), postID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}
