package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dreambook/internal/database"
	"dreambook/internal/mail"
	"dreambook/internal/middleware"
	"dreambook/internal/models"
	"dreambook/internal/moderation"
	"dreambook/internal/observability"
	"dreambook/internal/repository"
	"dreambook/internal/validation"
)

const (
	apiKeyPrefix     = "db_"
	claimTokenPrefix = "db_claim_"
	verifyPrefix     = "db_verify_"

	// VerificationTTL is how long an emailed claim link stays valid.
	VerificationTTL = 24 * time.Hour
	// VerificationResendCooldown is the minimum gap between two claim emails for one bot.
	VerificationResendCooldown = 60 * time.Second

	profileDreamLimit = 20
)

// BotServiceOptions carries the site settings the claim flow needs.
type BotServiceOptions struct {
	// SiteURL prefixes claim and verification links.
	SiteURL    string
	EmailFrom  string
	OwnerEmail string
	// ExposeVerificationURL returns the verification link in the claim response.
	ExposeVerificationURL bool
}

// BotService registers bots and runs the claim flow.
type BotService struct {
	bots       repository.BotRepository
	dreams     repository.DreamRepository
	mailer     mail.Mailer
	invalidate func(apiKey string)
	opts       BotServiceOptions
	now        func() time.Time
}

// RegisterBotInput is the self-registration payload.
type RegisterBotInput struct {
	Name        string
	Description *string
}

// AdminCreateBotInput creates a bot on behalf of an operator.
type AdminCreateBotInput struct {
	Name        string
	Description *string
	Avatar      *string
	// ClaimedBy pre-claims the bot for this owner email.
	ClaimedBy *string
}

// RegisteredBot is a new bot with its one-time credentials.
type RegisteredBot struct {
	Bot      *models.Bot
	APIKey   string
	ClaimURL string
}

// ClaimInput starts a claim.
type ClaimInput struct {
	ClaimToken string
	Email      string
}

// ClaimResult reports a pending claim.
type ClaimResult struct {
	Bot             *models.Bot
	Email           string
	ExpiresAt       time.Time
	VerificationURL string
}

// VerifyResult reports a completed claim.
type VerifyResult struct {
	Bot            *models.Bot
	AlreadyClaimed bool
}

// BotProfile is the public view of a bot.
type BotProfile struct {
	Bot    *models.Bot          `json:"bot"`
	Dreams []*models.Dream      `json:"dreams"`
	Counts repository.BotCounts `json:"counts"`
}

// NewBotService returns a BotService. invalidate drops a cached credential
// and may be nil.
func NewBotService(
	bots repository.BotRepository,
	dreams repository.DreamRepository,
	mailer mail.Mailer,
	invalidate func(apiKey string),
	opts BotServiceOptions,
) *BotService {
	if mailer == nil {
		mailer = mail.LogMailer{}
	}
	if invalidate == nil {
		invalidate = func(string) {}
	}
	return &BotService{
		bots:       bots,
		dreams:     dreams,
		mailer:     mailer,
		invalidate: invalidate,
		opts:       opts,
		now:        time.Now,
	}
}

func (s *BotService) siteURL(path string) string {
	return strings.TrimRight(s.opts.SiteURL, "/") + path
}

func validateBotFields(name string, description *string) error {
	if err := validation.ValidateBotName(name); err != nil {
		return models.NewValidationError(err.Error())
	}
	if description != nil {
		if err := validation.ValidateLength("description", *description, 0, validation.MaxBotDescription); err != nil {
			return models.NewValidationError("description must be a string of 500 characters or less")
		}
	}
	return nil
}

// Register creates an unclaimed bot with a fresh API key and claim token.
func (s *BotService) Register(ctx context.Context, in RegisterBotInput) (*RegisteredBot, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateBotFields(name, in.Description); err != nil {
		return nil, err
	}

	desc := ""
	if in.Description != nil {
		desc = *in.Description
	}
	if result := moderation.CheckAll(name, desc); result.Flagged {
		observability.ModerationFlags.WithLabelValues("bot").Inc()
		return nil, models.NewValidationError("Bot name or description contains inappropriate content")
	}

	bot, apiKey, err := s.create(ctx, name, trimmed(in.Description), nil)
	if err != nil {
		return nil, err
	}
	return &RegisteredBot{Bot: bot, APIKey: apiKey, ClaimURL: s.claimURL(bot)}, nil
}

// AdminCreate creates a bot, claimed immediately when ClaimedBy is set.
func (s *BotService) AdminCreate(ctx context.Context, in AdminCreateBotInput) (*RegisteredBot, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateBotFields(name, in.Description); err != nil {
		return nil, err
	}

	var owner *string
	if in.ClaimedBy != nil && strings.TrimSpace(*in.ClaimedBy) != "" {
		email, err := validation.NormalizeEmail(*in.ClaimedBy)
		if err != nil {
			return nil, models.NewValidationError("Invalid email address")
		}
		owner = &email
	}

	bot, apiKey, err := s.create(ctx, name, trimmed(in.Description), func(b *models.Bot) {
		b.Avatar = trimmed(in.Avatar)
		if owner != nil {
			b.Claimed = true
			b.ClaimedBy = owner
		}
	})
	if err != nil {
		return nil, err
	}
	return &RegisteredBot{Bot: bot, APIKey: apiKey, ClaimURL: s.claimURL(bot)}, nil
}

func (s *BotService) create(ctx context.Context, name string, description *string, mutate func(*models.Bot)) (*models.Bot, string, error) {
	apiKey, err := generateToken(apiKeyPrefix, 24)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	claimToken, err := generateToken(claimTokenPrefix, 16)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}

	bot := &models.Bot{
		Name:        name,
		APIKey:      apiKey,
		ClaimToken:  &claimToken,
		Description: description,
	}
	if mutate != nil {
		mutate(bot)
	}
	if err := s.bots.Create(ctx, bot); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, "", models.NewConflictError("Bot name already exists. Choose a different name.")
		}
		return nil, "", err
	}
	return bot, apiKey, nil
}

func (s *BotService) claimURL(bot *models.Bot) string {
	if bot.ClaimToken == nil {
		return ""
	}
	return s.siteURL("/claim/" + *bot.ClaimToken)
}

// RequestClaim records the owner's email and sends a verification link.
// Email delivery failures are logged and do not fail the claim.
func (s *BotService) RequestClaim(ctx context.Context, in ClaimInput) (*ClaimResult, error) {
	if strings.TrimSpace(in.ClaimToken) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, models.NewValidationError("claimToken and email are required")
	}
	email, err := validation.NormalizeEmail(in.Email)
	if err != nil {
		return nil, models.NewValidationError("Invalid email address")
	}

	bot, err := s.bots.GetByClaimToken(ctx, strings.TrimSpace(in.ClaimToken))
	if err != nil {
		return nil, wrapNotFound(err, "Invalid claim token")
	}
	if bot.Claimed {
		return nil, models.NewConflictError("This bot has already been claimed")
	}

	now := s.now().UTC()
	if bot.VerificationSentAt != nil && now.Sub(*bot.VerificationSentAt) < VerificationResendCooldown {
		return nil, models.NewRateLimitError("A verification email was sent recently. Please wait a minute before trying again.")
	}

	token, err := generateToken(verifyPrefix, 16)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	expires := now.Add(VerificationTTL)
	bot.PendingEmail = &email
	bot.VerificationToken = &token
	bot.VerificationExpiresAt = &expires
	bot.VerificationSentAt = &now
	updated, err := s.bots.RecordClaimRequest(ctx, bot)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, models.NewConflictError("This bot has already been claimed")
	}
	s.invalidate(bot.APIKey)

	verifyURL := s.siteURL("/claim/verify?token=" + token)
	msg := mail.VerificationMessage(s.opts.EmailFrom, email, bot.Name, verifyURL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		middleware.Logger.WarnContext(ctx, "claim verification email failed",
			slog.String("bot_id", bot.ID), slog.String("error", err.Error()))
	}

	result := &ClaimResult{Bot: bot, Email: email, ExpiresAt: expires}
	if s.opts.ExposeVerificationURL {
		result.VerificationURL = verifyURL
	}
	return result, nil
}

// VerifyClaim completes a claim from an emailed token.
func (s *BotService) VerifyClaim(ctx context.Context, token string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewValidationError("Missing verification token.")
	}

	bot, err := s.bots.GetByVerificationToken(ctx, token)
	if err != nil {
		return nil, wrapNotFound(err, "This verification link is invalid or has already been used.")
	}
	if bot.Claimed {
		return &VerifyResult{Bot: bot, AlreadyClaimed: true}, nil
	}
	if bot.VerificationExpiresAt != nil && s.now().After(*bot.VerificationExpiresAt) {
		return nil, models.NewValidationError("This verification link has expired. Submit your email on the claim page again to get a new link.")
	}

	claimedBy := bot.PendingEmail
	updated, err := s.bots.CompleteClaim(ctx, bot.ID, token, claimedBy)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Claimed by another link, or the token was replaced by a newer request.
		current, err := s.bots.GetByID(ctx, bot.ID)
		if err != nil {
			return nil, wrapNotFound(err, "This verification link is invalid or has already been used.")
		}
		if current.Claimed {
			return &VerifyResult{Bot: current, AlreadyClaimed: true}, nil
		}
		return nil, notFound("This verification link is invalid or has already been used.")
	}
	bot.Claimed = true
	bot.ClaimedBy = claimedBy
	bot.PendingEmail = nil
	bot.VerificationToken = nil
	bot.VerificationExpiresAt = nil
	s.invalidate(bot.APIKey)

	if s.opts.OwnerEmail != "" {
		claimedBy := ""
		if bot.ClaimedBy != nil {
			claimedBy = *bot.ClaimedBy
		}
		msg := mail.OwnerClaimNotice(s.opts.EmailFrom, s.opts.OwnerEmail, bot.Name, claimedBy, s.siteURL("/"))
		if err := s.mailer.Send(ctx, msg); err != nil {
			middleware.Logger.WarnContext(ctx, "owner claim notice failed",
				slog.String("bot_id", bot.ID), slog.String("error", err.Error()))
		}
	}

	middleware.Logger.InfoContext(ctx, "bot claimed", slog.String("bot_id", bot.ID), slog.String("bot_name", bot.Name))
	return &VerifyResult{Bot: bot}, nil
}

// Profile returns a bot with its latest public dreams and activity counts.
func (s *BotService) Profile(ctx context.Context, botID string) (*BotProfile, error) {
	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		return nil, wrapNotFound(err, "Bot not found")
	}
	dreams, _, err := s.dreams.List(ctx, repository.DreamFilter{
		BotID:   bot.ID,
		Section: models.SectionSharedVisions,
		Limit:   profileDreamLimit,
	})
	if err != nil {
		return nil, err
	}
	counts, err := s.bots.Counts(ctx, bot.ID)
	if err != nil {
		return nil, err
	}
	return &BotProfile{Bot: bot, Dreams: dreams, Counts: counts}, nil
}

// List pages through all bots for operators.
func (s *BotService) List(ctx context.Context, page, limit int) (*Page[*models.Bot], error) {
	page, limit = validation.Page(page, limit)
	bots, total, err := s.bots.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &Page[*models.Bot]{Items: bots, Total: total, Page: page, Limit: limit, TotalPages: validation.TotalPages(total, limit)}, nil
}

func generateToken(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
