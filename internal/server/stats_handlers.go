package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetStats handles GET /api/stats
// @Summary Site statistics
// @Tags stats
// @Produce json
// @Success 200 {object} models.SiteStats
// @Router /stats [get]
func (s *Server) GetStats(c *fiber.Ctx) error {
	stats, err := s.statsService.SiteStats(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(stats)
}

// GetPatterns handles GET /api/patterns
func (s *Server) GetPatterns(c *fiber.Ctx) error {
	patterns, err := s.statsService.Patterns(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(patterns)
}
