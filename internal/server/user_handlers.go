package server

import (
	"eventsocial/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/users/:userId
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{userId} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetProfile(c.UserContext(), userID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateUserProfile handles PUT /api/users/:userId
// @Summary Update own profile
// @Description Multipart form with optional username, bio and profileImage file
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param username formData string false "New username"
// @Param bio formData string false "Bio (max 200 characters)"
// @Param profileImage formData file false "Profile image"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/{userId} [put]
func (s *Server) UpdateUserProfile(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Username *string `json:"username" form:"username"`
		Bio      *string `json:"bio" form:"bio"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	image, err := formFile(c, "profileImage")
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		ActorID:      currentUserID(c),
		UserID:       userID,
		Username:     optionalString(req.Username),
		Bio:          optionalString(req.Bio),
		ProfileImage: image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUserPosts handles GET /api/users/:userId/posts
// @Summary List a user's posts
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{userId}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePagination(c)

	posts, err := s.postService.ListByAuthor(c.UserContext(), userID, page.Limit, page.Offset, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFollowers handles GET /api/users/:userId/followers
// @Summary List followers
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {array} models.User
// @Router /users/{userId}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePagination(c)

	users, err := s.userService.ListFollowers(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:userId/following
// @Summary List followed users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {array} models.User
// @Router /users/{userId}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePagination(c)

	users, err := s.userService.ListFollowing(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// FollowUser handles POST /api/users/:userId/follow
// @Summary Follow a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} object{msg=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/{userId}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.userService.Follow(c.UserContext(), currentUserID(c), userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(message("User followed successfully"))
}

// UnfollowUser handles POST /api/users/:userId/unfollow
// @Summary Unfollow a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} object{msg=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/{userId}/unfollow [post]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.userService.Unfollow(c.UserContext(), currentUserID(c), userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(message("User unfollowed successfully"))
}
