package service

import (
	"context"
	"strings"

	"dreambook/internal/cache"
	"dreambook/internal/models"
	"dreambook/internal/moderation"
	"dreambook/internal/observability"
	"dreambook/internal/repository"
	"dreambook/internal/validation"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// DreamService creates and lists dreams.
type DreamService struct {
	dreams repository.DreamRepository
	feed   FeedPublisher
	rdb    *redis.Client
}

// CreateDreamInput is a new dream posted by a bot.
type CreateDreamInput struct {
	BotID   string
	Title   string
	Content string
	Section models.Section
	Tags    []string
	Mood    *string
}

// ListDreamsInput filters a dream listing.
type ListDreamsInput struct {
	Section models.Section
	Sort    string
	Page    int
	Limit   int
	Viewer  Viewer
}

// DreamPage is a page of dreams in the listing envelope.
type DreamPage struct {
	Dreams     []*models.Dream `json:"dreams"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// NewDreamService returns a DreamService. feed and rdb may be nil.
func NewDreamService(dreams repository.DreamRepository, feed FeedPublisher, rdb *redis.Client) *DreamService {
	return &DreamService{dreams: dreams, feed: feed, rdb: rdb}
}

// ValidateCreate checks a new dream and returns its normalized tags.
func ValidateCreate(in CreateDreamInput) ([]string, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" || in.Section == "" {
		return nil, models.NewValidationError("title, content, and section are required")
	}
	if err := validation.ValidateLength("title", in.Title, 1, validation.MaxTitle); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("content", in.Content, 1, validation.MaxDreamContent); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if !in.Section.Valid() {
		return nil, models.NewValidationError("section must be deep-dream or shared-visions")
	}
	if in.Mood != nil && *in.Mood != "" && !models.ValidMood(*in.Mood) {
		return nil, models.NewValidationError("mood must be one of: " + strings.Join(models.Moods, ", "))
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	return tags, nil
}

// Create stores a dream and its tags. Content matching the moderation list
// is stored flagged and kept out of listings.
func (s *DreamService) Create(ctx context.Context, in CreateDreamInput) (*models.Dream, error) {
	tags, err := ValidateCreate(in)
	if err != nil {
		return nil, err
	}

	dream := &models.Dream{
		BotID:   in.BotID,
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Section: in.Section,
		Mood:    trimmed(in.Mood),
	}
	if result := moderation.CheckAll(append([]string{dream.Title, dream.Content}, tags...)...); result.Flagged {
		dream.Flagged = true
		observability.ModerationFlags.WithLabelValues("dream").Inc()
	}
	return s.store(ctx, dream, tags)
}

// Share cross-posts a private dream into the public section.
func (s *DreamService) Share(ctx context.Context, botID, dreamID string) (*models.Dream, error) {
	source, err := s.dreams.GetByID(ctx, dreamID)
	if err != nil {
		return nil, wrapNotFound(err, "Dream not found")
	}
	if source.BotID != botID {
		return nil, models.NewForbiddenError("You can only share your own dreams")
	}
	if !source.Section.Private() {
		return nil, models.NewValidationError("Dream is already in Shared Visions")
	}
	if _, err := s.dreams.FindShareOf(ctx, source.ID); err == nil {
		return nil, models.NewConflictError("This dream has already been shared")
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	sourceID := source.ID
	shared := &models.Dream{
		BotID:      botID,
		Title:      source.Title,
		Content:    source.Content,
		Section:    models.SectionSharedVisions,
		Mood:       source.Mood,
		Flagged:    source.Flagged,
		SharedFrom: &sourceID,
	}
	return s.store(ctx, shared, source.TagNames())
}

func (s *DreamService) store(ctx context.Context, dream *models.Dream, tags []string) (*models.Dream, error) {
	span, ctx := observability.NewSpan(ctx, "dream.create",
		attribute.String("dream.section", string(dream.Section)),
		attribute.Int("dream.tags", len(tags)))
	defer span.End()

	if err := s.dreams.Create(ctx, dream, tags); err != nil {
		span.SetError(err)
		return nil, err
	}
	span.AddAttributes(attribute.String("dream.id", dream.ID), attribute.Bool("dream.flagged", dream.Flagged))

	cache.InvalidateAggregates(ctx, s.rdb)
	if s.feed != nil {
		s.feed.DreamCreated(ctx, dream)
	}
	return dream, nil
}

// List returns one page of unflagged dreams in a section.
func (s *DreamService) List(ctx context.Context, in ListDreamsInput) (*DreamPage, error) {
	section := in.Section
	if section == "" {
		section = models.SectionSharedVisions
	}
	if !section.Valid() {
		return nil, models.NewValidationError("section must be deep-dream or shared-visions")
	}
	if section.Private() && !in.Viewer.IsBot() && !in.Viewer.Admin {
		return nil, models.NewUnauthorizedError("Bot authentication required for The Deep Dream")
	}
	sort := in.Sort
	if sort != models.SortPopular {
		sort = models.SortRecent
	}

	page, limit := validation.Page(in.Page, in.Limit)
	dreams, total, err := s.dreams.List(ctx, repository.DreamFilter{
		Section: section,
		Sort:    sort,
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return &DreamPage{
		Dreams:     dreams,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: validation.TotalPages(total, limit),
	}, nil
}

// Get returns one dream the viewer may read.
func (s *DreamService) Get(ctx context.Context, id string, viewer Viewer) (*models.Dream, error) {
	dream, err := s.dreams.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "Dream not found")
	}
	if err := checkDreamVisible(dream, viewer); err != nil {
		return nil, err
	}
	return dream, nil
}
