package service

import (
	"context"
	"log/slog"

	"dreambook/internal/cache"
	"dreambook/internal/middleware"
	"dreambook/internal/models"
	"dreambook/internal/repository"

	"github.com/redis/go-redis/v9"
)

// Moderation actions.
const (
	ActionUnflag = "unflag"
	ActionDelete = "delete"
)

const flaggedQueueLimit = 50

// ModerationService runs operator actions on content.
type ModerationService struct {
	repo repository.ModerationRepository
	tags repository.TagRepository
	rdb  *redis.Client
}

// ModerateInput names one item and what to do with it.
type ModerateInput struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Action string `json:"action"`
}

// ModerateResult echoes a completed action.
type ModerateResult struct {
	Success bool   `json:"success"`
	Type    string `json:"type"`
	ID      string `json:"id"`
	Action  string `json:"action"`
}

// TagMaintenance reports a prune or recount.
type TagMaintenance struct {
	Pruned    int64 `json:"pruned"`
	Recounted int64 `json:"recounted"`
}

// NewModerationService returns a ModerationService. rdb may be nil.
func NewModerationService(repo repository.ModerationRepository, tags repository.TagRepository, rdb *redis.Client) *ModerationService {
	return &ModerationService{repo: repo, tags: tags, rdb: rdb}
}

// Moderate unflags or deletes one item. Deleting a dream removes its votes,
// comments and tag links and decrements its tag counts.
func (s *ModerationService) Moderate(ctx context.Context, in ModerateInput) (*ModerateResult, error) {
	if in.Type == "" || in.ID == "" || in.Action == "" {
		return nil, models.NewValidationError("type, id, and action are required")
	}
	target := repository.ModerationTarget(in.Type)
	if !target.Valid() {
		return nil, models.NewValidationError("type must be one of: dream, comment, request, response")
	}

	var (
		found bool
		err   error
	)
	switch in.Action {
	case ActionUnflag:
		found, err = s.repo.Unflag(ctx, target, in.ID)
	case ActionDelete:
		found, err = s.repo.Delete(ctx, target, in.ID)
	default:
		return nil, models.NewValidationError("action must be one of: unflag, delete")
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("Item not found or already deleted")
	}

	cache.InvalidateAggregates(ctx, s.rdb)
	middleware.Logger.InfoContext(ctx, "content moderated",
		slog.String("type", in.Type), slog.String("id", in.ID), slog.String("action", in.Action))
	return &ModerateResult{Success: true, Type: in.Type, ID: in.ID, Action: in.Action}, nil
}

// Flagged returns the newest flagged items of each type.
func (s *ModerationService) Flagged(ctx context.Context) (*repository.FlaggedContent, error) {
	return s.repo.Flagged(ctx, flaggedQueueLimit)
}

// PruneTags deletes tags no dream references.
func (s *ModerationService) PruneTags(ctx context.Context) (*TagMaintenance, error) {
	n, err := s.tags.PruneOrphans(ctx)
	if err != nil {
		return nil, err
	}
	cache.InvalidateAggregates(ctx, s.rdb)
	return &TagMaintenance{Pruned: n}, nil
}

// RecountTags rewrites drifted tag counts from the associations.
func (s *ModerationService) RecountTags(ctx context.Context) (*TagMaintenance, error) {
	n, err := s.tags.Recount(ctx)
	if err != nil {
		return nil, err
	}
	cache.InvalidateAggregates(ctx, s.rdb)
	return &TagMaintenance{Recounted: n}, nil
}
