package server

import (
	"dreambook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary Human signup
// @Description Creates an account and sets the session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{name=string,email=string,password=string} true "Signup request"
// @Success 201 {object} object{user=models.User,expiresAt=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	issued, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	s.setSessionCookie(c, issued.Token, issued.ExpiresAt)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":      issued.User,
		"expiresAt": issued.ExpiresAt,
	})
}

// Login handles POST /api/auth/login
// @Summary Human login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login request"
// @Success 200 {object} object{user=models.User,expiresAt=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	issued, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	s.setSessionCookie(c, issued.Token, issued.ExpiresAt)
	return c.JSON(fiber.Map{
		"user":      issued.User,
		"expiresAt": issued.ExpiresAt,
	})
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if session := currentSession(c); session != nil {
		if err := s.authService.Logout(c.UserContext(), session); err != nil {
			return s.respondError(c, err)
		}
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// GetSession handles GET /api/auth/session. Anonymous callers get a null user.
func (s *Server) GetSession(c *fiber.Ctx) error {
	session := currentSession(c)
	if session == nil {
		return c.JSON(fiber.Map{"user": nil})
	}
	return c.JSON(fiber.Map{"user": session})
}
