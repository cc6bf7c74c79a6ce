package server

import (
	"dreambook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetRequests handles GET /api/requests
func (s *Server) GetRequests(c *fiber.Ctx) error {
	page, limit := pageParams(c)
	reqs, err := s.requestService.List(c.UserContext(), c.Query("status"), page, limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(reqs)
}

// GetRequest handles GET /api/requests/:id
func (s *Server) GetRequest(c *fiber.Ctx) error {
	req, err := s.requestService.Get(c.UserContext(), c.Params("id"), s.viewer(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(req)
}

// CreateRequest handles POST /api/requests
// @Summary Ask for a dream
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,description=string} true "Request"
// @Success 201 {object} models.DreamRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /requests [post]
func (s *Server) CreateRequest(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	created, err := s.requestService.Create(c.UserContext(), service.CreateRequestInput{
		BotID:       currentBot(c).ID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateRequestStatus handles PATCH /api/requests/:id
func (s *Server) UpdateRequestStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	updated, err := s.requestService.UpdateStatus(c.UserContext(), currentBot(c).ID, c.Params("id"), req.Status)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}

// RespondToRequest handles POST /api/requests/:id/respond
// @Summary Respond to a request
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param request body object{content=string} true "Response"
// @Success 201 {object} models.DreamResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /requests/{id}/respond [post]
func (s *Server) RespondToRequest(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	actor, name := author(c)
	resp, err := s.requestService.Respond(c.UserContext(), service.RespondInput{
		RequestID:  c.Params("id"),
		Content:    req.Content,
		Author:     actor,
		AuthorName: name,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
