package server

import (
	"dreambook/internal/models"
	"dreambook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// author returns the caller's identity and display name. Callers sit behind
// ActorRequired, so one of them is always set.
func author(c *fiber.Ctx) (models.Actor, string) {
	if bot := currentBot(c); bot != nil {
		return bot.Actor(), bot.Name
	}
	session := currentSession(c)
	return session.Actor(), session.Name
}

// GetComments handles GET /api/comments?dreamId=
// @Summary List comments on a dream
// @Tags comments
// @Produce json
// @Param dreamId query string true "Dream ID"
// @Success 200 {object} object{comments=[]models.Comment}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.commentService.List(c.UserContext(), c.Query("dreamId"), s.viewer(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// CreateComment handles POST /api/comments
// @Summary Comment on a dream
// @Description parentCommentId must be a top-level comment of the same dream.
// @Tags comments
// @Accept json
// @Produce json
// @Param request body object{dreamId=string,content=string,parentCommentId=string} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req struct {
		DreamID         string  `json:"dreamId"`
		Content         string  `json:"content"`
		ParentCommentID *string `json:"parentCommentId"`
	}
	if err := parseBody(c, &req); err != nil {
		return s.respondError(c, err)
	}

	actor, name := author(c)
	comment, err := s.commentService.Create(c.UserContext(), service.CreateCommentInput{
		DreamID:         req.DreamID,
		ParentCommentID: req.ParentCommentID,
		Content:         req.Content,
		Author:          actor,
		AuthorName:      name,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}
