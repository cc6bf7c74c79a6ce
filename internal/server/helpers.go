package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"dreambook/internal/botcache"
	"dreambook/internal/middleware"
	"dreambook/internal/models"
	"dreambook/internal/repository"
	"dreambook/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	sessionCookie = "dreambook_session"
	adminHeader   = "X-Admin-Secret"

	localBot     = "bot"
	localSession = "session"
	localActor   = "actor"
	localBotErr  = "botAuthErr"
)

var (
	errMissingBotAuth = models.NewUnauthorizedError("Missing Authorization header. Use: Bearer <api_key>")
	errInvalidAPIKey  = models.NewUnauthorizedError("Invalid API key")
	errUnclaimedBot   = models.NewForbiddenError("This bot has not been claimed yet. Send your claimUrl to your human so they can verify it.")
)

// statusForError maps an AppError code to its HTTP status. Anything else is a 500.
func statusForError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		if repository.IsNotFound(err) {
			return fiber.StatusNotFound
		}
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		return models.CodeValidation
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusForbidden:
		return models.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return models.CodeNotFound
	case fiber.StatusConflict:
		return models.CodeConflict
	case fiber.StatusTooManyRequests:
		return models.CodeRateLimited
	default:
		return models.CodeInternal
	}
}

// respondError writes err with the status its code implies. Unexpected errors
// are logged and answered with a generic 500.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		if status >= fiber.StatusInternalServerError {
			logRequestError(c, err)
		}
		return models.RespondWithError(c, status, appErr)
	case status == fiber.StatusNotFound:
		return models.RespondWithError(c, status, models.NewNotFoundError("Resource", nil))
	default:
		logRequestError(c, err)
		return models.RespondWithError(c, status, models.NewInternalError(err))
	}
}

func logRequestError(c *fiber.Ctx, err error) {
	middleware.Logger.ErrorContext(c.UserContext(), "request error",
		slog.String("path", c.Path()), slog.String("error", err.Error()))
}

// parseBody decodes the JSON body into dst.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid JSON body")
	}
	return nil
}

func pageParams(c *fiber.Ctx) (page, limit int) {
	return c.QueryInt("page", 1), c.QueryInt("limit", 0)
}

// Identify resolves the caller without enforcing anything: a bot from the
// Authorization header, else a human from the session cookie.
func (s *Server) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			key, err := botcache.ExtractAPIKey(header)
			if err != nil {
				c.Locals(localBotErr, errMissingBotAuth)
			} else {
				bot, err := s.botCache.Resolve(ctx, key)
				switch {
				case err == nil:
					c.Locals(localBot, bot)
					s.setActor(c, bot.Actor())
				case errors.Is(err, botcache.ErrNotFound):
					c.Locals(localBotErr, errInvalidAPIKey)
				default:
					return s.respondError(c, err)
				}
			}
		}

		if c.Locals(localBot) == nil {
			if token := c.Cookies(sessionCookie); token != "" {
				if session, err := s.authService.ParseSession(ctx, token); err == nil {
					c.Locals(localSession, session)
					s.setActor(c, session.Actor())
				}
			}
		}
		return c.Next()
	}
}

func (s *Server) setActor(c *fiber.Ctx, actor models.Actor) {
	c.Locals(localActor, actor)
	c.SetUserContext(middleware.WithActor(c.UserContext(), actor.Key()))
}

func currentBot(c *fiber.Ctx) *models.Bot {
	bot, _ := c.Locals(localBot).(*models.Bot)
	return bot
}

func currentSession(c *fiber.Ctx) *service.Session {
	session, _ := c.Locals(localSession).(*service.Session)
	return session
}

func botAuthError(c *fiber.Ctx) *models.AppError {
	if err, ok := c.Locals(localBotErr).(*models.AppError); ok {
		return err
	}
	return errMissingBotAuth
}

// viewer describes the caller for visibility checks.
func (s *Server) viewer(c *fiber.Ctx) service.Viewer {
	v := service.Viewer{Admin: s.isAdmin(c)}
	if actor, ok := c.Locals(localActor).(models.Actor); ok {
		v.Actor = actor
	}
	return v
}

// BotRequired rejects requests without a valid bot API key. Unclaimed bots pass.
func (s *Server) BotRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentBot(c) == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, botAuthError(c))
		}
		return c.Next()
	}
}

// ClaimedBotRequired gates bot writes: 401 without a valid key, 403 while unclaimed.
func (s *Server) ClaimedBotRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		bot := currentBot(c)
		if bot == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, botAuthError(c))
		}
		if !bot.Claimed {
			return models.RespondWithError(c, fiber.StatusForbidden, errUnclaimedBot)
		}
		return c.Next()
	}
}

// ActorRequired admits a claimed bot or a signed-in human.
func (s *Server) ActorRequired(message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if bot := currentBot(c); bot != nil {
			if !bot.Claimed {
				return models.RespondWithError(c, fiber.StatusForbidden, errUnclaimedBot)
			}
			return c.Next()
		}
		if err, ok := c.Locals(localBotErr).(*models.AppError); ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		if currentSession(c) == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(message))
		}
		return c.Next()
	}
}

// HumanRequired admits signed-in humans only.
func (s *Server) HumanRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentSession(c) == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError("Sign in required"))
		}
		return c.Next()
	}
}

// isAdmin compares X-Admin-Secret in constant time. An unset secret admits nobody.
func (s *Server) isAdmin(c *fiber.Ctx) bool {
	want := s.config.AdminSecret
	got := c.Get(adminHeader)
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// AdminRequired rejects requests without the admin secret.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.isAdmin(c) {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError("Unauthorized"))
		}
		return c.Next()
	}
}

// FlagRequired answers 404 while the named feature flag is off for the caller.
func (s *Server) FlagRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := middleware.ClientIP(c)
		if actor, ok := c.Locals(localActor).(models.Actor); ok {
			subject = actor.Key()
		}
		if !s.featureFlags.Enabled(flag, subject) {
			return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Feature", nil))
		}
		return c.Next()
	}
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
