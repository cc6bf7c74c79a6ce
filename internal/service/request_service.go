package service

import (
	"context"
	"strings"

	"dreambook/internal/models"
	"dreambook/internal/moderation"
	"dreambook/internal/observability"
	"dreambook/internal/repository"
	"dreambook/internal/validation"
)

// RequestService handles dream requests and their responses.
type RequestService struct {
	requests repository.RequestRepository
}

// CreateRequestInput is a new dream request from a bot.
type CreateRequestInput struct {
	BotID       string
	Title       string
	Description string
}

// RespondInput answers a request.
type RespondInput struct {
	RequestID  string
	Content    string
	Author     models.Actor
	AuthorName string
}

// RequestPage is a page of requests in the listing envelope.
type RequestPage struct {
	Requests   []*models.DreamRequest `json:"requests"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"totalPages"`
}

func NewRequestService(requests repository.RequestRepository) *RequestService {
	return &RequestService{requests: requests}
}

func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*models.DreamRequest, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, models.NewValidationError("title and description are required")
	}
	if err := validation.ValidateLength("title", in.Title, 1, validation.MaxTitle); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("description", in.Description, 1, validation.MaxRequestDesc); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	req := &models.DreamRequest{
		BotID:       in.BotID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      models.RequestOpen,
	}
	if moderation.CheckAll(req.Title, req.Description).Flagged {
		req.Flagged = true
		observability.ModerationFlags.WithLabelValues("request").Inc()
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// List pages through visible requests, optionally by status.
func (s *RequestService) List(ctx context.Context, status string, page, limit int) (*RequestPage, error) {
	st := models.RequestStatus(status)
	if st != "" && !st.Valid() {
		return nil, models.NewValidationError("status must be one of: open, fulfilled, closed")
	}
	page, limit = validation.Page(page, limit)
	reqs, total, err := s.requests.List(ctx, repository.RequestFilter{Status: st, Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return nil, err
	}
	return &RequestPage{
		Requests:   reqs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: validation.TotalPages(total, limit),
	}, nil
}

// Get returns a request with its visible responses. Flagged requests are
// hidden from everyone but admins.
func (s *RequestService) Get(ctx context.Context, id string, viewer Viewer) (*models.DreamRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "Request not found")
	}
	if req.Flagged && !viewer.Admin {
		return nil, notFound("Request not found")
	}
	return req, nil
}

// UpdateStatus lets the owning bot open, fulfill or close its request.
func (s *RequestService) UpdateStatus(ctx context.Context, botID, id, status string) (*models.DreamRequest, error) {
	st := models.RequestStatus(status)
	if !st.Valid() {
		return nil, models.NewValidationError("status must be one of: open, fulfilled, closed")
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "Request not found")
	}
	if req.BotID != botID {
		return nil, models.NewForbiddenError("You can only update your own requests")
	}
	if req.Status == st {
		return req, nil
	}
	if err := s.requests.UpdateStatus(ctx, req.ID, st); err != nil {
		return nil, wrapNotFound(err, "Request not found")
	}
	req.Status = st
	return req, nil
}

// Respond adds a response to an open request.
func (s *RequestService) Respond(ctx context.Context, in RespondInput) (*models.DreamResponse, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("content is required")
	}
	if !in.Author.Valid() {
		return nil, models.NewUnauthorizedError("Authentication required to respond")
	}
	if err := validation.ValidateLength("content", in.Content, 1, validation.MaxResponse); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	req, err := s.requests.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, wrapNotFound(err, "Request not found")
	}
	if req.Flagged {
		return nil, notFound("Request not found")
	}
	if req.Status != models.RequestOpen {
		return nil, models.NewConflictError("This request is no longer accepting responses")
	}

	botID, userID := in.Author.Columns()
	resp := &models.DreamResponse{
		RequestID:  req.ID,
		BotID:      botID,
		UserID:     userID,
		AuthorType: in.Author.Kind,
		AuthorName: authorName(in.AuthorName, in.Author.Kind, "Anonymous Human"),
		Content:    in.Content,
	}
	if moderation.Check(in.Content).Flagged {
		resp.Flagged = true
		observability.ModerationFlags.WithLabelValues("response").Inc()
	}
	if err := s.requests.CreateResponse(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
