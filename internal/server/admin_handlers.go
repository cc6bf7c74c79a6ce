package server

import (
	"dreambook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Moderate handles POST /api/admin/moderate
// @Summary Unflag or delete content
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminSecret
// @Param request body service.ModerateInput true "type: dream, comment, request or response; action: unflag or delete"
// @Success 200 {object} service.ModerateResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/moderate [post]
func (s *Server) Moderate(c *fiber.Ctx) error {
	var req service.ModerateInput
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	result, err := s.moderationService.Moderate(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// GetFlagged handles GET /api/admin/flagged
func (s *Server) GetFlagged(c *fiber.Ctx) error {
	flagged, err := s.moderationService.Flagged(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(flagged)
}

// GetAdminFeedback handles GET /api/admin/feedback
func (s *Server) GetAdminFeedback(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	items, err := s.feedbackService.ListFeedback(c.UserContext(), page, limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(items)
}

// GetAdminDonations handles GET /api/admin/donations
func (s *Server) GetAdminDonations(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	items, err := s.feedbackService.ListDonations(c.UserContext(), page, limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(items)
}

// PruneTags handles POST /api/admin/tags/prune
func (s *Server) PruneTags(c *fiber.Ctx) error {
	res, err := s.moderationService.PruneTags(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// RecountTags handles POST /api/admin/tags/recount
func (s *Server) RecountTags(c *fiber.Ctx) error {
	res, err := s.moderationService.RecountTags(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// GetFeatureFlags handles GET /api/admin/feature-flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"flags":    s.featureFlags.Raw(),
		"resolved": s.featureFlags.Snapshot(c.Query("subject")),
	})
}
