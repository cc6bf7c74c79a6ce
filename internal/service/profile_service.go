package service

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"dreambook/internal/models"
	"dreambook/internal/repository"
	"dreambook/internal/validation"
)

// ActivityPageSize is the fixed page size of the activity feed.
const ActivityPageSize = 20

// ProfileService reads and edits a human's own profile.
type ProfileService struct {
	users    repository.UserRepository
	activity repository.ActivityRepository
}

// ProfileView is a user with their contribution counts.
type ProfileView struct {
	Profile *models.User         `json:"profile"`
	Stats   models.ActivityStats `json:"stats"`
}

// UpdateProfileInput changes display name and bio. Nil fields are left alone;
// blank ones are cleared.
type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
}

func NewProfileService(users repository.UserRepository, activity repository.ActivityRepository) *ProfileService {
	return &ProfileService{users: users, activity: activity}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, "User not found")
	}
	stats, err := s.activity.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{Profile: user, Stats: stats}, nil
}

func (s *ProfileService) Update(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	if in.DisplayName != nil && utf8.RuneCountInString(*in.DisplayName) > validation.MaxDisplayName {
		return nil, models.NewValidationError("Display name must be 50 characters or less")
	}
	if in.Bio != nil && utf8.RuneCountInString(*in.Bio) > validation.MaxBio {
		return nil, models.NewValidationError("Bio must be 500 characters or less")
	}
	user, err := s.users.UpdateProfile(ctx, userID, trimSpace(in.DisplayName), trimSpace(in.Bio))
	if err != nil {
		return nil, wrapNotFound(err, "User not found")
	}
	return user, nil
}

// Activity merges the user's votes, comments and responses newest first.
func (s *ProfileService) Activity(ctx context.Context, userID string, page int) (*Page[models.ActivityItem], error) {
	page, limit := validation.Page(page, ActivityPageSize)
	perKind := limit * 3
	if need := page * limit; need > perKind {
		perKind = need
	}
	items, err := s.activity.Recent(ctx, userID, perKind)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := int64(len(items))
	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return &Page[models.ActivityItem]{
		Items:      append([]models.ActivityItem{}, items[start:end]...),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: validation.TotalPages(total, limit),
	}, nil
}

func trimSpace(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
