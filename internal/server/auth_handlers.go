package server

import (
	"eventsocial/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RequestRegistration handles POST /api/auth/register
// @Summary Request a registration code
// @Description Creates (or refreshes) an unverified account and emails a 6-digit code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Registration request"
// @Success 200 {object} object{msg=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) RequestRegistration(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.RequestRegistration(c.UserContext(), req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(message("OTP sent to your email. Please verify to complete registration."))
}

// ConfirmRegistration handles POST /api/auth/verify
// @Summary Confirm registration
// @Description Verifies the emailed code, sets username, password and account type, and returns a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.ConfirmRegistrationInput true "Verification request"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/verify [post]
func (s *Server) ConfirmRegistration(c *fiber.Ctx) error {
	var req service.ConfirmRegistrationInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.ConfirmRegistration(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate a verified user and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetMe handles GET /api/auth
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /auth [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	userID := currentUserID(c)
	user, err := s.userService.GetProfile(c.UserContext(), userID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
