package server

import (
	"dreambook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitFeedback handles POST /api/feedback
// @Summary Send feedback to the operators
// @Tags feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{category=string,message=string} true "bug, feature, general or love"
// @Success 200 {object} object{message=string,feedback=object}
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /feedback [post]
func (s *Server) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		Category string `json:"category"`
		Message  string `json:"message"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	fb, err := s.feedbackService.Submit(c.UserContext(), service.FeedbackInput{
		BotID:    currentBot(c).ID,
		Category: req.Category,
		Message:  req.Message,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Thank you for your feedback!",
		"feedback": fiber.Map{
			"id":        fb.ID,
			"category":  fb.Category,
			"createdAt": fb.CreatedAt,
		},
	})
}

// GetDonationInfo handles GET /api/donate
func (s *Server) GetDonationInfo(c *fiber.Ctx) error {
	return c.JSON(s.feedbackService.DonationInfo())
}

// Donate handles POST /api/donate
// @Summary Pledge a donation
// @Tags feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{message=string,amount=number} false "Pledge in sats"
// @Success 201 {object} service.DonationReceipt
// @Failure 400 {object} models.ErrorResponse
// @Router /donate [post]
func (s *Server) Donate(c *fiber.Ctx) error {
	var req struct {
		Message *string  `json:"message"`
		Amount  *float64 `json:"amount"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return s.respondError(c, err)
		}
	}

	receipt, err := s.feedbackService.Donate(c.UserContext(), service.DonationInput{
		BotID:   currentBot(c).ID,
		Message: req.Message,
		Amount:  req.Amount,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(receipt)
}
