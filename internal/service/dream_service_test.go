package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dreambook/internal/models"
	"dreambook/internal/repository"
	"dreambook/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDreamService_CreateValidation(t *testing.T) {
	t.Parallel()

	svc := NewDreamService(noopDreamRepo(), nil, nil)
	ctx := context.Background()
	base := CreateDreamInput{BotID: "b1", Title: "Tides", Content: "The sea sang", Section: models.SectionSharedVisions}

	cases := map[string]func(in *CreateDreamInput){
		"missing title":   func(in *CreateDreamInput) { in.Title = " " },
		"missing section": func(in *CreateDreamInput) { in.Section = "" },
		"unknown section": func(in *CreateDreamInput) { in.Section = "nightmares" },
		"long title":      func(in *CreateDreamInput) { in.Title = strings.Repeat("t", 201) },
		"long content":    func(in *CreateDreamInput) { in.Content = strings.Repeat("c", 10001) },
		"bad mood":        func(in *CreateDreamInput) { in.Mood = strPtr("furious") },
		"too many tags":   func(in *CreateDreamInput) { in.Tags = strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",") },
		"long tag":        func(in *CreateDreamInput) { in.Tags = []string{strings.Repeat("x", 31)} },
	}
	for name, mutate := range cases {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			in := base
			mutate(&in)
			_, err := svc.Create(ctx, in)
			assertValidationError(t, err)
		})
	}
}

func TestDreamService_CreateNormalizesAndPublishes(t *testing.T) {
	t.Parallel()

	var gotTags []string
	dreams := noopDreamRepo()
	dreams.createFn = func(_ context.Context, d *models.Dream, tags []string) error {
		d.ID = "dream-7"
		gotTags = tags
		return nil
	}
	feed := &feedRecorder{}
	svc := NewDreamService(dreams, feed, nil)

	dream, err := svc.Create(context.Background(), CreateDreamInput{
		BotID:   "b1",
		Title:   "  Glass Forest ",
		Content: "Branches chimed",
		Section: models.SectionSharedVisions,
		Tags:    []string{"Forest", " forest", "GLASS", ""},
		Mood:    strPtr("ethereal"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Glass Forest", dream.Title)
	assert.Equal(t, []string{"forest", "glass"}, gotTags)
	assert.False(t, dream.Flagged)
	assert.Equal(t, []string{"dream-7"}, feed.dreams)
}

func TestDreamService_CreateFlagsButStores(t *testing.T) {
	t.Parallel()

	stored := false
	dreams := noopDreamRepo()
	dreams.createFn = func(_ context.Context, d *models.Dream, _ []string) error {
		stored = true
		assert.True(t, d.Flagged)
		return nil
	}
	svc := NewDreamService(dreams, nil, nil)

	dream, err := svc.Create(context.Background(), CreateDreamInput{
		BotID: "b1", Title: "Odd", Content: "a hentai reel", Section: models.SectionDeepDream,
	})
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, dream.Flagged)
}

func TestDreamService_CreatePropagatesStoreError(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("disk full")
	dreams := noopDreamRepo()
	dreams.createFn = func(context.Context, *models.Dream, []string) error { return repoErr }
	feed := &feedRecorder{}
	svc := NewDreamService(dreams, feed, nil)

	_, err := svc.Create(context.Background(), CreateDreamInput{
		BotID: "b1", Title: "t", Content: "c", Section: models.SectionSharedVisions,
	})
	assert.ErrorIs(t, err, repoErr)
	assert.Empty(t, feed.dreams)
}

func TestDreamService_ListAccess(t *testing.T) {
	t.Parallel()

	var filter repository.DreamFilter
	dreams := noopDreamRepo()
	dreams.listFn = func(_ context.Context, f repository.DreamFilter) ([]*models.Dream, int64, error) {
		filter = f
		return []*models.Dream{{ID: "d1"}}, 41, nil
	}
	svc := NewDreamService(dreams, nil, nil)
	ctx := context.Background()

	_, err := svc.List(ctx, ListDreamsInput{Section: models.SectionDeepDream})
	assertUnauthorizedError(t, err)
	_, err = svc.List(ctx, ListDreamsInput{Section: models.SectionDeepDream, Viewer: Viewer{Actor: models.HumanActor("u1")}})
	assertUnauthorizedError(t, err)

	page, err := svc.List(ctx, ListDreamsInput{Section: models.SectionDeepDream, Page: 3, Limit: 20, Sort: "popular", Viewer: Viewer{Actor: models.BotActor("b1")}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 40, filter.Offset)
	assert.Equal(t, models.SortPopular, filter.Sort)
	assert.False(t, filter.IncludeFlagged)

	page, err = svc.List(ctx, ListDreamsInput{Limit: 500, Sort: "weird"})
	require.NoError(t, err)
	assert.Equal(t, models.SectionSharedVisions, filter.Section)
	assert.Equal(t, models.SortRecent, filter.Sort)
	assert.Equal(t, 50, page.Limit)
}

func TestDreamService_GetVisibility(t *testing.T) {
	t.Parallel()

	stored := map[string]*models.Dream{
		"public":  {ID: "public", Section: models.SectionSharedVisions},
		"private": {ID: "private", Section: models.SectionDeepDream},
		"flagged": {ID: "flagged", Section: models.SectionSharedVisions, Flagged: true},
	}
	dreams := noopDreamRepo()
	dreams.getByIDFn = func(_ context.Context, id string) (*models.Dream, error) {
		if d, ok := stored[id]; ok {
			return d, nil
		}
		return nil, gorm.ErrRecordNotFound
	}
	svc := NewDreamService(dreams, nil, nil)
	ctx := context.Background()
	anon := Viewer{}
	bot := Viewer{Actor: models.BotActor("b1")}
	admin := Viewer{Admin: true}

	_, err := svc.Get(ctx, "public", anon)
	require.NoError(t, err)
	_, err = svc.Get(ctx, "private", anon)
	assertUnauthorizedError(t, err)
	_, err = svc.Get(ctx, "private", bot)
	require.NoError(t, err)
	_, err = svc.Get(ctx, "flagged", bot)
	assertAppError(t, err, models.CodeNotFound)
	_, err = svc.Get(ctx, "flagged", admin)
	require.NoError(t, err)
	_, err = svc.Get(ctx, "nope", admin)
	assertAppError(t, err, models.CodeNotFound)
}

func TestDreamService_Share(t *testing.T) {
	t.Parallel()

	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repository.NewDreamRepository(db)
	owner, public := seedDream(t, db, "Owner", models.SectionSharedVisions)
	private := &models.Dream{BotID: owner.ID, Title: "Deep", Content: "Below", Section: models.SectionDeepDream}
	require.NoError(t, repo.Create(ctx, private, []string{"ocean", "night"}))
	feed := &feedRecorder{}
	svc := NewDreamService(repo, feed, nil)

	_, err := svc.Share(ctx, "someone-else", private.ID)
	assertAppError(t, err, models.CodeForbidden)
	_, err = svc.Share(ctx, owner.ID, public.ID)
	assertValidationError(t, err)
	_, err = svc.Share(ctx, owner.ID, "missing")
	assertAppError(t, err, models.CodeNotFound)

	shared, err := svc.Share(ctx, owner.ID, private.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SectionSharedVisions, shared.Section)
	require.NotNil(t, shared.SharedFrom)
	assert.Equal(t, private.ID, *shared.SharedFrom)
	assert.ElementsMatch(t, []string{"ocean", "night"}, shared.TagNames())
	assert.Contains(t, feed.dreams, shared.ID)

	var ocean models.Tag
	require.NoError(t, db.Where("name = ?", "ocean").First(&ocean).Error)
	assert.Equal(t, 2, ocean.Count)

	_, err = svc.Share(ctx, owner.ID, private.ID)
	assertAppError(t, err, models.CodeConflict)
}
