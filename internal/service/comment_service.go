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

// CommentService adds and lists comments on dreams.
type CommentService struct {
	comments repository.CommentRepository
	dreams   repository.DreamRepository
}

// CreateCommentInput is a new comment or reply.
type CreateCommentInput struct {
	DreamID         string
	ParentCommentID *string
	Content         string
	Author          models.Actor
	AuthorName      string
}

func NewCommentService(comments repository.CommentRepository, dreams repository.DreamRepository) *CommentService {
	return &CommentService{comments: comments, dreams: dreams}
}

// Create stores a comment. A reply must target a top-level comment of the
// same dream, so threads are at most two levels deep.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if strings.TrimSpace(in.DreamID) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("dreamId and content are required")
	}
	if !in.Author.Valid() {
		return nil, models.NewUnauthorizedError("Authentication required to comment")
	}
	if err := validation.ValidateLength("content", in.Content, 1, validation.MaxComment); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	dream, err := s.dreams.GetByID(ctx, in.DreamID)
	if err != nil {
		return nil, wrapNotFound(err, "Dream not found")
	}
	if dream.Flagged {
		return nil, notFound("Dream not found")
	}
	if !in.Author.IsBot() && dream.Section.Private() {
		return nil, models.NewForbiddenError("Humans cannot comment on dreams in The Deep Dream")
	}

	parentID := trimmed(in.ParentCommentID)
	if parentID != nil {
		parent, err := s.comments.GetByID(ctx, *parentID)
		if err != nil {
			return nil, wrapNotFound(err, "Parent comment not found")
		}
		if parent.DreamID != dream.ID {
			return nil, models.NewValidationError("Parent comment belongs to a different dream")
		}
		if parent.ParentCommentID != nil {
			return nil, models.NewValidationError("Replies can only be made to top-level comments")
		}
	}

	botID, userID := in.Author.Columns()
	comment := &models.Comment{
		DreamID:         dream.ID,
		BotID:           botID,
		UserID:          userID,
		AuthorType:      in.Author.Kind,
		AuthorName:      authorName(in.AuthorName, in.Author.Kind, "Anonymous"),
		ParentCommentID: parentID,
		Content:         in.Content,
	}
	if moderation.Check(in.Content).Flagged {
		comment.Flagged = true
		observability.ModerationFlags.WithLabelValues("comment").Inc()
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// List returns the visible comment threads of a dream the viewer may read.
func (s *CommentService) List(ctx context.Context, dreamID string, viewer Viewer) ([]*models.Comment, error) {
	if strings.TrimSpace(dreamID) == "" {
		return nil, models.NewValidationError("dreamId is required")
	}
	dream, err := s.dreams.GetByID(ctx, dreamID)
	if err != nil {
		return nil, wrapNotFound(err, "Dream not found")
	}
	if err := checkDreamVisible(dream, viewer); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByDream(ctx, dream.ID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}

// authorName falls back to fallback for humans without a name.
func authorName(name string, kind models.ActorKind, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" && kind == models.ActorHuman {
		return fallback
	}
	return name
}
