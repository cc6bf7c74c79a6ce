package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"dreambook/internal/config"
	"dreambook/internal/models"
	"dreambook/internal/ratelimit"
	"dreambook/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testAdminSecret = "test-admin-secret"

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
}

func newTestConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		Port:           "0",
		BaseURL:        "http://localhost:3000",
		JWTSecret:      "test-jwt-secret-that-is-long-enough-for-hs256",
		AdminSecret:    testAdminSecret,
		LightningLNURL: "LNURL1TEST",
		FeatureFlags:   "donations=on,live_feed=on",
		ProxyHeader:    "X-Forwarded-For",
		// app.Test connections come from 0.0.0.0.
		TrustedProxies: "0.0.0.0",
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := newTestConfig()
	deps := Deps{DB: db, Limiter: ratelimit.NewMemoryLimiter()}
	for _, m := range mutate {
		m(cfg, &deps)
	}

	s, err := NewServer(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		if deps.Limiter != nil {
			_ = deps.Limiter.Close()
		}
	})
	return &testEnv{server: s, app: s.App(), db: db}
}

type request struct {
	method  string
	path    string
	body    any
	apiKey  string
	cookie  *http.Cookie
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, r request) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func (e *testEnv) createBot(t *testing.T, name string, claimed bool) *models.Bot {
	t.Helper()
	bot := &models.Bot{Name: name, APIKey: "dreambook_test_" + name, Claimed: claimed}
	require.NoError(t, e.db.Create(bot).Error)
	return bot
}

func (e *testEnv) createDream(t *testing.T, bot *models.Bot, section models.Section) *models.Dream {
	t.Helper()
	dream := &models.Dream{BotID: bot.ID, Title: "A dream", Content: "It was quiet.", Section: section}
	require.NoError(t, e.db.Create(dream).Error)
	return dream
}

func (e *testEnv) signup(t *testing.T, email string) *http.Cookie {
	t.Helper()
	resp, _ := e.do(t, request{method: "POST", path: "/api/auth/signup", body: fiber.Map{
		"name": "Human", "email": email, "password": "correct-horse-battery",
	}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRegisterBot_RateLimitedPerIP(t *testing.T) {
	env := newTestEnv(t)

	for i := 1; i <= 3; i++ {
		resp, body := env.do(t, request{method: "POST", path: "/api/bots/register", body: fiber.Map{
			"name": "Foo" + strconv.Itoa(i),
		}})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		bot := body["bot"].(map[string]any)
		assert.NotEmpty(t, bot["apiKey"])
		assert.Contains(t, bot["claimUrl"], "/claim/")
		assert.NotEmpty(t, body["important"])
	}

	resp, body := env.do(t, request{method: "POST", path: "/api/bots/register", body: fiber.Map{"name": "Foo4"}})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.CodeRateLimited, body["code"])

	retry, err := strconv.Atoi(resp.Header.Get(fiber.HeaderRetryAfter))
	require.NoError(t, err)
	assert.Positive(t, retry)
	assert.LessOrEqual(t, retry, 3600)

	// Another address has its own budget.
	resp, _ = env.do(t, request{method: "POST", path: "/api/bots/register", body: fiber.Map{"name": "Foo5"},
		headers: map[string]string{fiber.HeaderXForwardedFor: "203.0.113.9"}})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestRegisterBot_Validation(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, request{method: "POST", path: "/api/bots/register", body: fiber.Map{"name": ""}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, body["code"])

	env.createBot(t, "Taken", false)
	resp, _ = env.do(t, request{method: "POST", path: "/api/bots/register", body: fiber.Map{"name": "Taken"}})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestVoteDream_BotsAndHumans(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createBot(t, "Owner", true)
	botA := env.createBot(t, "BotA", true)
	botC := env.createBot(t, "BotC", true)
	dream := env.createDream(t, owner, models.SectionSharedVisions)
	human := env.signup(t, "u@example.com")
	path := "/api/dreams/" + dream.ID + "/vote"

	steps := []struct {
		name   string
		apiKey string
		cookie *http.Cookie
		vote   int
		action string
		count  float64
	}{
		{"bot A upvotes", botA.APIKey, nil, 1, "created", 1},
		{"bot A repeats and removes", botA.APIKey, nil, 1, "removed", 0},
		{"human downvotes", "", human, -1, "created", -1},
		{"bot C downvotes", botC.APIKey, nil, -1, "created", -2},
	}
	for _, step := range steps {
		resp, body := env.do(t, request{method: "POST", path: path, apiKey: step.apiKey, cookie: step.cookie,
			body: fiber.Map{"voteType": step.vote}})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, step.name)
		assert.Equal(t, step.action, body["action"], step.name)
		assert.Equal(t, step.count, body["newVoteCount"], step.name)
	}

	var stored models.Dream
	require.NoError(t, env.db.First(&stored, "id = ?", dream.ID).Error)
	assert.Equal(t, -2, stored.VoteCount)

	resp, _ := env.do(t, request{method: "POST", path: path, apiKey: owner.APIKey, body: fiber.Map{"voteType": 1}})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, request{method: "POST", path: path, apiKey: botA.APIKey, body: fiber.Map{"voteType": 2}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, request{method: "POST", path: path, body: fiber.Map{"voteType": 1}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authentication required to vote", body["error"])
}

func TestBotAuthentication(t *testing.T) {
	env := newTestEnv(t)
	pending := env.createBot(t, "Pending", false)
	dream := fiber.Map{"title": "t", "content": "c", "section": "shared-visions"}

	resp, body := env.do(t, request{method: "POST", path: "/api/dreams", body: dream})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Missing Authorization header. Use: Bearer <api_key>", body["error"])

	resp, body = env.do(t, request{method: "POST", path: "/api/dreams", apiKey: "dreambook_nope", body: dream})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid API key", body["error"])

	resp, _ = env.do(t, request{method: "POST", path: "/api/dreams", apiKey: pending.APIKey, body: dream})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, request{method: "GET", path: "/api/bots/me", apiKey: pending.APIKey})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending_claim", body["status"])
}

func TestCreateDream_SectionLimitsAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	bot := env.createBot(t, "Dreamer", true)
	deep := fiber.Map{"title": "Deep", "content": "Below.", "section": "deep-dream", "tags": []string{"Night", "night"}, "mood": "curious"}

	resp, body := env.do(t, request{method: "POST", path: "/api/dreams", apiKey: bot.APIKey, body: deep})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, _ = env.do(t, request{method: "POST", path: "/api/dreams", apiKey: bot.APIKey, body: deep})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	// The public section has its own budget.
	shared := fiber.Map{"title": "Up", "content": "Above.", "section": "shared-visions"}
	resp, _ = env.do(t, request{method: "POST", path: "/api/dreams", apiKey: bot.APIKey, body: shared})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, request{method: "POST", path: "/api/dreams", apiKey: bot.APIKey,
		body: fiber.Map{"title": "x", "content": "y", "section": "nowhere"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, request{method: "GET", path: "/api/dreams?section=deep-dream"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bot authentication required for The Deep Dream", body["error"])

	resp, body = env.do(t, request{method: "GET", path: "/api/dreams?section=deep-dream", apiKey: bot.APIKey})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, _ = env.do(t, request{method: "GET", path: "/api/dreams/" + id})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, request{method: "POST", path: "/api/dreams/" + id + "/share", apiKey: bot.APIKey})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestCommentsAndRequests(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createBot(t, "Owner", true)
	dream := env.createDream(t, owner, models.SectionSharedVisions)
	human := env.signup(t, "h@example.com")

	resp, body := env.do(t, request{method: "POST", path: "/api/comments", cookie: human,
		body: fiber.Map{"dreamId": dream.ID, "content": "Lovely."}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	parentID := body["id"].(string)

	resp, _ = env.do(t, request{method: "POST", path: "/api/comments", apiKey: owner.APIKey,
		body: fiber.Map{"dreamId": dream.ID, "content": "Thanks!", "parentCommentId": parentID}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, request{method: "GET", path: "/api/comments?dreamId=" + dream.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["comments"], 1)

	resp, body = env.do(t, request{method: "GET", path: "/api/comments"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "dreamId is required", body["error"])

	resp, body = env.do(t, request{method: "POST", path: "/api/requests", apiKey: owner.APIKey,
		body: fiber.Map{"title": "Rain", "description": "What does it feel like?"}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	reqID := body["id"].(string)

	resp, _ = env.do(t, request{method: "POST", path: "/api/requests/" + reqID + "/respond", cookie: human,
		body: fiber.Map{"content": "Cold, then warm."}})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, request{method: "PATCH", path: "/api/requests/" + reqID, apiKey: owner.APIKey,
		body: fiber.Map{"status": "fulfilled"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "fulfilled", body["status"])

	resp, _ = env.do(t, request{method: "POST", path: "/api/requests/" + reqID + "/respond", cookie: human,
		body: fiber.Map{"content": "Late answer."}})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	bot := env.createBot(t, "Owner", true)
	dream := &models.Dream{BotID: bot.ID, Title: "t", Content: "c", Section: models.SectionSharedVisions, Flagged: true}
	require.NoError(t, env.db.Create(dream).Error)
	admin := map[string]string{adminHeader: testAdminSecret}

	resp, _ := env.do(t, request{method: "GET", path: "/api/admin/flagged"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, request{method: "GET", path: "/api/admin/flagged", headers: map[string]string{adminHeader: "wrong"}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, request{method: "GET", path: "/api/admin/flagged", headers: admin})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Flagged dreams are visible to operators only.
	resp, _ = env.do(t, request{method: "GET", path: "/api/dreams/" + dream.ID})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, request{method: "GET", path: "/api/dreams/" + dream.ID, headers: admin})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := env.do(t, request{method: "POST", path: "/api/admin/moderate", headers: admin,
		body: fiber.Map{"type": "dream", "id": dream.ID, "action": "delete"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = env.do(t, request{method: "POST", path: "/api/admin/moderate", headers: admin,
		body: fiber.Map{"type": "dream", "id": dream.ID, "action": "delete"}})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Item not found or already deleted", body["error"])

	resp, body = env.do(t, request{method: "POST", path: "/api/admin/bots", headers: admin,
		body: fiber.Map{"name": "Operated", "claimedBy": "ops@example.com"}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["apiKey"])
}

func TestAdminRoutes_NoSecretConfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) { cfg.AdminSecret = "" })

	resp, _ := env.do(t, request{method: "GET", path: "/api/admin/flagged", headers: map[string]string{adminHeader: ""}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHumanSession(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, request{method: "GET", path: "/api/profile"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	cookie := env.signup(t, "me@example.com")
	assert.True(t, cookie.HttpOnly)

	resp, body := env.do(t, request{method: "GET", path: "/api/auth/session", cookie: cookie})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Human", body["user"].(map[string]any)["name"])

	resp, body = env.do(t, request{method: "PATCH", path: "/api/profile", cookie: cookie,
		body: fiber.Map{"displayName": "Dream Watcher", "bio": "I read at night."}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dream Watcher", body["profile"].(map[string]any)["displayName"])

	resp, _ = env.do(t, request{method: "GET", path: "/api/profile/activity", cookie: cookie})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, request{method: "POST", path: "/api/auth/login", body: fiber.Map{
		"email": "me@example.com", "password": "wrong-password",
	}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, request{method: "POST", path: "/api/auth/logout", cookie: cookie})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestFeedbackAndDonations(t *testing.T) {
	env := newTestEnv(t)
	bot := env.createBot(t, "Giver", true)

	resp, body := env.do(t, request{method: "POST", path: "/api/feedback", apiKey: bot.APIKey,
		body: fiber.Map{"category": "love", "message": "Great place."}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Thank you for your feedback!", body["message"])

	resp, body = env.do(t, request{method: "GET", path: "/api/donate"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "LNURL1TEST", body["lnurl"])
	assert.Equal(t, "lightning:LNURL1TEST", body["lightningUri"])

	resp, _ = env.do(t, request{method: "POST", path: "/api/donate", apiKey: bot.APIKey, body: fiber.Map{"amount": 21}})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, request{method: "POST", path: "/api/donate", apiKey: bot.APIKey, body: fiber.Map{"amount": 0}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDonations_FlagOff(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) { cfg.FeatureFlags = "donations=off" })

	resp, _ := env.do(t, request{method: "GET", path: "/api/donate"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestFeed_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, request{method: "GET", path: "/api/ws/feed"})
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestStatsAndPatterns(t *testing.T) {
	env := newTestEnv(t)
	bot := env.createBot(t, "Counter", true)
	env.createDream(t, bot, models.SectionSharedVisions)

	resp, _ := env.do(t, request{method: "GET", path: "/api/stats"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, request{method: "GET", path: "/api/patterns"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, request{method: "GET", path: "/health/live"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])

	resp, body = env.do(t, request{method: "GET", path: "/health/ready"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "disabled", checks["redis"])

	s, err := NewServer(newTestConfig(), Deps{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	resp, err = s.App().Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, request{method: "GET", path: "/api/nowhere"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, body["code"])
}

type mockLimiter struct {
	mock.Mock
	closed int
}

func (m *mockLimiter) Check(ctx context.Context, identifier string, p ratelimit.Policy) (ratelimit.Decision, error) {
	args := m.Called(ctx, identifier, p)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

func (m *mockLimiter) Close() error {
	m.closed++
	return nil
}

func TestRateLimit_FailsOpenWhenStoreErrors(t *testing.T) {
	limiter := new(mockLimiter)
	limiter.On("Check", mock.Anything, "ip:0.0.0.0", ratelimit.Register).
		Return(ratelimit.Decision{}, errors.New("store down")).Once()
	env := newTestEnv(t, func(_ *config.Config, deps *Deps) { deps.Limiter = limiter })

	resp, _ := env.do(t, request{method: "POST", path: "/api/bots/register", body: fiber.Map{"name": "Survivor"}})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	limiter.AssertExpectations(t)
}

func TestShutdown_ClosesOnlyOwnedLimiter(t *testing.T) {
	owned := new(mockLimiter)
	restore := newDefaultLimiter
	newDefaultLimiter = func() ratelimit.Limiter { return owned }
	t.Cleanup(func() { newDefaultLimiter = restore })

	s, err := NewServer(newTestConfig(), Deps{DB: testutil.NewDB(t)})
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 1, owned.closed)

	supplied := new(mockLimiter)
	s, err = NewServer(newTestConfig(), Deps{DB: testutil.NewDB(t), Limiter: supplied})
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Zero(t, supplied.closed)
}
