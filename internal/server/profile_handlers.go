package server

import (
	"dreambook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profile
func (s *Server) GetProfile(c *fiber.Ctx) error {
	view, err := s.profileService.Get(c.UserContext(), currentSession(c).UserID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(view)
}

// UpdateProfile handles PATCH /api/profile
// @Summary Update the signed-in human's profile
// @Tags profile
// @Accept json
// @Produce json
// @Param request body object{displayName=string,bio=string} true "Fields to change"
// @Success 200 {object} object{profile=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /profile [patch]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName *string `json:"displayName"`
		Bio         *string `json:"bio"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	user, err := s.profileService.Update(c.UserContext(), currentSession(c).UserID, service.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"profile": user})
}

// GetProfileActivity handles GET /api/profile/activity
func (s *Server) GetProfileActivity(c *fiber.Ctx) error {
	activity, err := s.profileService.Activity(c.UserContext(), currentSession(c).UserID, c.QueryInt("page", 1))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(activity)
}
