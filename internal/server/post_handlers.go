package server

import (
	"strings"
	"time"

	"eventsocial/internal/models"
	"eventsocial/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postRequest is the body of create and update. Multipart requests carry the
// same fields as form values plus up to five `media` files.
type postRequest struct {
	Title              *string `json:"title" form:"title"`
	Description        *string `json:"description" form:"description"`
	IsEvent            *bool   `json:"isEvent" form:"isEvent"`
	EventDateTime      *string `json:"eventDateTime" form:"eventDateTime"`
	Location           *string `json:"location" form:"location"`
	ClearExistingMedia bool    `json:"clearExistingMedia" form:"clearExistingMedia"`
}

// eventTimeLayouts are tried in order; the last one is what HTML
// datetime-local inputs submit.
var eventTimeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func parseEventTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, models.NewValidationError("eventDateTime must be an ISO 8601 date-time")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description JSON body, or multipart form with up to five `media` files. Event posts require eventDateTime.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body postRequest true "Post"
// @Success 201 {object} object{post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	eventTime, err := parseEventTime(req.EventDateTime)
	if err != nil {
		return respondError(c, err)
	}
	files, err := formFiles(c, "media", service.MaxPostMedia)
	if err != nil {
		return respondError(c, err)
	}

	isEvent := req.IsEvent != nil && *req.IsEvent
	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:      currentUserID(c),
		Title:         deref(req.Title),
		Description:   deref(req.Description),
		IsEvent:       isEvent,
		EventDateTime: eventTime,
		Location:      optionalString(req.Location),
		Media:         files,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"post": post})
}

// GetPosts handles GET /api/posts
// @Summary List all posts, newest first
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.ListPosts(c.UserContext(), page.Limit, page.Offset, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFeed handles GET /api/posts/feed
// @Summary Posts from followed users
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.Feed(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetInterestedPosts handles GET /api/posts/my/interested
// @Summary Events the caller is interested in
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /posts/my/interested [get]
func (s *Server) GetInterestedPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.ListInterested(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetAttendedPosts handles GET /api/posts/my/attended
// @Summary Past events the caller attended
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /posts/my/attended [get]
func (s *Server) GetAttendedPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	posts, err := s.postService.ListAttended(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:postId
// @Summary Get a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), postID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:postId
// @Summary Update own post
// @Description Partial update. New media files replace the list; clearExistingMedia empties it.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Param request body postRequest true "Fields to change"
// @Success 200 {object} object{post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	eventTime, err := parseEventTime(req.EventDateTime)
	if err != nil {
		return respondError(c, err)
	}
	files, err := formFiles(c, "media", service.MaxPostMedia)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		ActorID:            currentUserID(c),
		PostID:             postID,
		Title:              req.Title,
		Description:        req.Description,
		IsEvent:            req.IsEvent,
		EventDateTime:      eventTime,
		Location:           optionalString(req.Location),
		ClearExistingMedia: req.ClearExistingMedia,
		Media:              files,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"post": post})
}

// DeletePost handles DELETE /api/posts/:postId
// @Summary Delete own post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{msg=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), postID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(message("Post deleted successfully."))
}

// ToggleInterest handles PUT /api/posts/:postId/interest
// @Summary Toggle interest in an upcoming event
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{msg=string,interested=bool,interestedCount=int,post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{postId}/interest [put]
func (s *Server) ToggleInterest(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	userID := currentUserID(c)

	res, err := s.postService.ToggleInterest(ctx, postID, userID)
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.GetPost(ctx, postID, userID)
	if err != nil {
		return respondError(c, err)
	}

	msg := "Interest removed"
	if res.Interested {
		msg = "Interest added"
	}
	return c.JSON(fiber.Map{
		"msg":             msg,
		"interested":      res.Interested,
		"interestedCount": res.InterestedCount,
		"post":            post,
	})
}

// MarkAttendance handles POST /api/posts/:postId/attend
// @Summary Mark attendance at a started event
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{msg=string,attended=bool,post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{postId}/attend [post]
func (s *Server) MarkAttendance(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	userID := currentUserID(c)

	if err := s.postService.MarkAttendance(ctx, postID, userID); err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.GetPost(ctx, postID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"msg":      "Attendance marked successfully",
		"attended": true,
		"post":     post,
	})
}

// ToggleAttendance handles PUT /api/posts/:postId/attendance
// @Summary Toggle attendance
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{msg=string,attended=bool,post=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{postId}/attendance [put]
func (s *Server) ToggleAttendance(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	userID := currentUserID(c)

	attended, err := s.postService.ToggleAttendance(ctx, postID, userID)
	if err != nil {
		return respondError(c, err)
	}
	post, err := s.postService.GetPost(ctx, postID, userID)
	if err != nil {
		return respondError(c, err)
	}

	msg := "Attendance removed"
	if attended {
		msg = "Attendance marked successfully"
	}
	return c.JSON(fiber.Map{"msg": msg, "attended": attended, "post": post})
}
