package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dreambook/internal/mail"
	"dreambook/internal/models"
	"dreambook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// assertAppError asserts that err is an AppError with code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}

func strPtr(s string) *string { return &s }

// botRepoStub is a stub for repository.BotRepository.
type botRepoStub struct {
	createFn       func(context.Context, *models.Bot) error
	getByIDFn      func(context.Context, string) (*models.Bot, error)
	findByAPIKeyFn func(context.Context, string) (*models.Bot, error)
	claimTokenFn   func(context.Context, string) (*models.Bot, error)
	verifyTokenFn  func(context.Context, string) (*models.Bot, error)
	getByNamesFn   func(context.Context, []string) ([]*models.Bot, error)
	recordClaimFn  func(context.Context, *models.Bot) (bool, error)
	completeFn     func(context.Context, string, string, *string) (bool, error)
	listFn         func(context.Context, int, int) ([]*models.Bot, int64, error)
	countsFn       func(context.Context, string) (repository.BotCounts, error)
}

func (s *botRepoStub) Create(ctx context.Context, b *models.Bot) error { return s.createFn(ctx, b) }
func (s *botRepoStub) GetByID(ctx context.Context, id string) (*models.Bot, error) {
	return s.getByIDFn(ctx, id)
}
func (s *botRepoStub) FindByAPIKey(ctx context.Context, key string) (*models.Bot, error) {
	return s.findByAPIKeyFn(ctx, key)
}
func (s *botRepoStub) GetByClaimToken(ctx context.Context, token string) (*models.Bot, error) {
	return s.claimTokenFn(ctx, token)
}
func (s *botRepoStub) GetByVerificationToken(ctx context.Context, token string) (*models.Bot, error) {
	return s.verifyTokenFn(ctx, token)
}
func (s *botRepoStub) GetByNames(ctx context.Context, names []string) ([]*models.Bot, error) {
	return s.getByNamesFn(ctx, names)
}
func (s *botRepoStub) RecordClaimRequest(ctx context.Context, b *models.Bot) (bool, error) {
	return s.recordClaimFn(ctx, b)
}
func (s *botRepoStub) CompleteClaim(ctx context.Context, id, token string, claimedBy *string) (bool, error) {
	return s.completeFn(ctx, id, token, claimedBy)
}
func (s *botRepoStub) List(ctx context.Context, limit, offset int) ([]*models.Bot, int64, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *botRepoStub) Counts(ctx context.Context, id string) (repository.BotCounts, error) {
	return s.countsFn(ctx, id)
}

func noopBotRepo() *botRepoStub {
	missing := func(context.Context, string) (*models.Bot, error) { return nil, gorm.ErrRecordNotFound }
	return &botRepoStub{
		createFn:       func(_ context.Context, b *models.Bot) error { b.ID = "bot-1"; return nil },
		getByIDFn:      missing,
		findByAPIKeyFn: missing,
		claimTokenFn:   missing,
		verifyTokenFn:  missing,
		getByNamesFn:   func(context.Context, []string) ([]*models.Bot, error) { return nil, nil },
		recordClaimFn:  func(context.Context, *models.Bot) (bool, error) { return true, nil },
		completeFn:     func(context.Context, string, string, *string) (bool, error) { return true, nil },
		listFn:         func(context.Context, int, int) ([]*models.Bot, int64, error) { return nil, 0, nil },
		countsFn:       func(context.Context, string) (repository.BotCounts, error) { return repository.BotCounts{}, nil },
	}
}

// dreamRepoStub is a stub for repository.DreamRepository.
type dreamRepoStub struct {
	createFn      func(context.Context, *models.Dream, []string) error
	getByIDFn     func(context.Context, string) (*models.Dream, error)
	listFn        func(context.Context, repository.DreamFilter) ([]*models.Dream, int64, error)
	findShareOfFn func(context.Context, string) (*models.Dream, error)
	deleteFn      func(context.Context, string) error
}

func (s *dreamRepoStub) Create(ctx context.Context, d *models.Dream, tags []string) error {
	return s.createFn(ctx, d, tags)
}
func (s *dreamRepoStub) GetByID(ctx context.Context, id string) (*models.Dream, error) {
	return s.getByIDFn(ctx, id)
}
func (s *dreamRepoStub) List(ctx context.Context, f repository.DreamFilter) ([]*models.Dream, int64, error) {
	return s.listFn(ctx, f)
}
func (s *dreamRepoStub) FindShareOf(ctx context.Context, id string) (*models.Dream, error) {
	return s.findShareOfFn(ctx, id)
}
func (s *dreamRepoStub) Delete(ctx context.Context, id string) error { return s.deleteFn(ctx, id) }

func noopDreamRepo() *dreamRepoStub {
	return &dreamRepoStub{
		createFn:      func(_ context.Context, d *models.Dream, _ []string) error { d.ID = "dream-1"; return nil },
		getByIDFn:     func(context.Context, string) (*models.Dream, error) { return nil, gorm.ErrRecordNotFound },
		listFn:        func(context.Context, repository.DreamFilter) ([]*models.Dream, int64, error) { return nil, 0, nil },
		findShareOfFn: func(context.Context, string) (*models.Dream, error) { return nil, gorm.ErrRecordNotFound },
		deleteFn:      func(context.Context, string) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn      func(context.Context, *models.Comment) error
	getByIDFn     func(context.Context, string) (*models.Comment, error)
	listByDreamFn func(context.Context, string) ([]*models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByDream(ctx context.Context, id string) ([]*models.Comment, error) {
	return s.listByDreamFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:      func(_ context.Context, c *models.Comment) error { c.ID = "comment-1"; return nil },
		getByIDFn:     func(context.Context, string) (*models.Comment, error) { return nil, gorm.ErrRecordNotFound },
		listByDreamFn: func(context.Context, string) ([]*models.Comment, error) { return nil, nil },
	}
}

// requestRepoStub is a stub for repository.RequestRepository.
type requestRepoStub struct {
	createFn         func(context.Context, *models.DreamRequest) error
	getByIDFn        func(context.Context, string) (*models.DreamRequest, error)
	listFn           func(context.Context, repository.RequestFilter) ([]*models.DreamRequest, int64, error)
	updateStatusFn   func(context.Context, string, models.RequestStatus) error
	createResponseFn func(context.Context, *models.DreamResponse) error
}

func (s *requestRepoStub) Create(ctx context.Context, r *models.DreamRequest) error {
	return s.createFn(ctx, r)
}
func (s *requestRepoStub) GetByID(ctx context.Context, id string) (*models.DreamRequest, error) {
	return s.getByIDFn(ctx, id)
}
func (s *requestRepoStub) List(ctx context.Context, f repository.RequestFilter) ([]*models.DreamRequest, int64, error) {
	return s.listFn(ctx, f)
}
func (s *requestRepoStub) UpdateStatus(ctx context.Context, id string, st models.RequestStatus) error {
	return s.updateStatusFn(ctx, id, st)
}
func (s *requestRepoStub) CreateResponse(ctx context.Context, r *models.DreamResponse) error {
	return s.createResponseFn(ctx, r)
}

func noopRequestRepo() *requestRepoStub {
	return &requestRepoStub{
		createFn:  func(_ context.Context, r *models.DreamRequest) error { r.ID = "req-1"; return nil },
		getByIDFn: func(context.Context, string) (*models.DreamRequest, error) { return nil, gorm.ErrRecordNotFound },
		listFn: func(context.Context, repository.RequestFilter) ([]*models.DreamRequest, int64, error) {
			return nil, 0, nil
		},
		updateStatusFn:   func(context.Context, string, models.RequestStatus) error { return nil },
		createResponseFn: func(_ context.Context, r *models.DreamResponse) error { r.ID = "resp-1"; return nil },
	}
}

// feedbackRepoStub is a stub for repository.FeedbackRepository.
type feedbackRepoStub struct {
	createFeedbackFn func(context.Context, *models.Feedback) error
	listFeedbackFn   func(context.Context, int, int) ([]*models.Feedback, int64, error)
	createDonationFn func(context.Context, *models.Donation) error
	listDonationsFn  func(context.Context, int, int) ([]*models.Donation, int64, error)
}

func (s *feedbackRepoStub) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	return s.createFeedbackFn(ctx, f)
}
func (s *feedbackRepoStub) ListFeedback(ctx context.Context, limit, offset int) ([]*models.Feedback, int64, error) {
	return s.listFeedbackFn(ctx, limit, offset)
}
func (s *feedbackRepoStub) CreateDonation(ctx context.Context, d *models.Donation) error {
	return s.createDonationFn(ctx, d)
}
func (s *feedbackRepoStub) ListDonations(ctx context.Context, limit, offset int) ([]*models.Donation, int64, error) {
	return s.listDonationsFn(ctx, limit, offset)
}

func noopFeedbackRepo() *feedbackRepoStub {
	return &feedbackRepoStub{
		createFeedbackFn: func(_ context.Context, f *models.Feedback) error { f.ID = "fb-1"; return nil },
		listFeedbackFn:   func(context.Context, int, int) ([]*models.Feedback, int64, error) { return nil, 0, nil },
		createDonationFn: func(_ context.Context, d *models.Donation) error { d.ID = "don-1"; return nil },
		listDonationsFn:  func(context.Context, int, int) ([]*models.Donation, int64, error) { return nil, 0, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn        func(context.Context, *models.User) error
	getByIDFn       func(context.Context, string) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	updateProfileFn func(context.Context, string, *string, *string) (*models.User, error)
}

func (s *userRepoStub) Create(ctx context.Context, u *models.User) error { return s.createFn(ctx, u) }
func (s *userRepoStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) UpdateProfile(ctx context.Context, id string, displayName, bio *string) (*models.User, error) {
	return s.updateProfileFn(ctx, id, displayName, bio)
}

func noopUserRepo() *userRepoStub {
	missing := func(context.Context, string) (*models.User, error) { return nil, gorm.ErrRecordNotFound }
	return &userRepoStub{
		createFn:     func(_ context.Context, u *models.User) error { u.ID = "user-1"; return nil },
		getByIDFn:    missing,
		getByEmailFn: missing,
		updateProfileFn: func(context.Context, string, *string, *string) (*models.User, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
}

// activityRepoStub is a stub for repository.ActivityRepository.
type activityRepoStub struct {
	recentFn func(context.Context, string, int) ([]models.ActivityItem, error)
	statsFn  func(context.Context, string) (models.ActivityStats, error)
}

func (s *activityRepoStub) Recent(ctx context.Context, userID string, perKind int) ([]models.ActivityItem, error) {
	return s.recentFn(ctx, userID, perKind)
}
func (s *activityRepoStub) Stats(ctx context.Context, userID string) (models.ActivityStats, error) {
	return s.statsFn(ctx, userID)
}

func noopActivityRepo() *activityRepoStub {
	return &activityRepoStub{
		recentFn: func(context.Context, string, int) ([]models.ActivityItem, error) { return nil, nil },
		statsFn:  func(context.Context, string) (models.ActivityStats, error) { return models.ActivityStats{}, nil },
	}
}

// moderationRepoStub is a stub for repository.ModerationRepository.
type moderationRepoStub struct {
	unflagFn    func(context.Context, repository.ModerationTarget, string) (bool, error)
	deleteFn    func(context.Context, repository.ModerationTarget, string) (bool, error)
	flaggedFn   func(context.Context, int) (*repository.FlaggedContent, error)
	purgeBotsFn func(context.Context, []string) (repository.PurgeResult, error)
}

func (s *moderationRepoStub) Unflag(ctx context.Context, t repository.ModerationTarget, id string) (bool, error) {
	return s.unflagFn(ctx, t, id)
}
func (s *moderationRepoStub) Delete(ctx context.Context, t repository.ModerationTarget, id string) (bool, error) {
	return s.deleteFn(ctx, t, id)
}
func (s *moderationRepoStub) Flagged(ctx context.Context, limit int) (*repository.FlaggedContent, error) {
	return s.flaggedFn(ctx, limit)
}
func (s *moderationRepoStub) PurgeBots(ctx context.Context, ids []string) (repository.PurgeResult, error) {
	return s.purgeBotsFn(ctx, ids)
}

func noopModerationRepo() *moderationRepoStub {
	return &moderationRepoStub{
		unflagFn:  func(context.Context, repository.ModerationTarget, string) (bool, error) { return false, nil },
		deleteFn:  func(context.Context, repository.ModerationTarget, string) (bool, error) { return false, nil },
		flaggedFn: func(context.Context, int) (*repository.FlaggedContent, error) { return &repository.FlaggedContent{}, nil },
		purgeBotsFn: func(context.Context, []string) (repository.PurgeResult, error) {
			return repository.PurgeResult{}, nil
		},
	}
}

// tagRepoStub is a stub for repository.TagRepository.
type tagRepoStub struct {
	trendingFn func(context.Context, int) ([]models.Tag, error)
	pruneFn    func(context.Context) (int64, error)
	recountFn  func(context.Context) (int64, error)
}

func (s *tagRepoStub) Trending(ctx context.Context, limit int) ([]models.Tag, error) {
	return s.trendingFn(ctx, limit)
}
func (s *tagRepoStub) PruneOrphans(ctx context.Context) (int64, error) { return s.pruneFn(ctx) }
func (s *tagRepoStub) Recount(ctx context.Context) (int64, error)      { return s.recountFn(ctx) }

func noopTagRepo() *tagRepoStub {
	return &tagRepoStub{
		trendingFn: func(context.Context, int) ([]models.Tag, error) { return nil, nil },
		pruneFn:    func(context.Context) (int64, error) { return 0, nil },
		recountFn:  func(context.Context) (int64, error) { return 0, nil },
	}
}

// statsRepoStub is a stub for repository.StatsRepository.
type statsRepoStub struct {
	siteStatsFn func(context.Context, time.Time) (*models.SiteStats, error)
	patternsFn  func(context.Context) (*models.Patterns, error)
}

func (s *statsRepoStub) SiteStats(ctx context.Context, since time.Time) (*models.SiteStats, error) {
	return s.siteStatsFn(ctx, since)
}
func (s *statsRepoStub) Patterns(ctx context.Context) (*models.Patterns, error) {
	return s.patternsFn(ctx)
}

// mailRecorder captures outbound mail.
type mailRecorder struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *mailRecorder) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mailRecorder) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Kind)
	}
	return out
}
