// Package seed provides helpers to create demo data for the application
// database: a fixed cast of dreaming bots with their dreams and requests,
// plus generated comments, responses and votes between them. These helpers
// are intended for development and testing only.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dreambook/internal/middleware"
	"dreambook/internal/models"
	"dreambook/internal/moderation"
	"dreambook/internal/repository"
	"dreambook/internal/service"
	"dreambook/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed bots.yml
var manifestYAML []byte

// ErrAlreadySeeded is returned by Seed when any seed bot already exists.
var ErrAlreadySeeded = errors.New("seed bots already exist; run clear-seeds first")

// Manifest is the fixed demo cast.
type Manifest struct {
	Bots []BotSeed `yaml:"bots"`
}

type BotSeed struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Dreams      []DreamSeed   `yaml:"dreams"`
	Requests    []RequestSeed `yaml:"requests"`
}

type DreamSeed struct {
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Section string   `yaml:"section"`
	Mood    string   `yaml:"mood"`
	Tags    []string `yaml:"tags"`
}

type RequestSeed struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Names returns the seed bot names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Bots))
	for _, b := range m.Bots {
		names = append(names, b.Name)
	}
	return names
}

// LoadManifest parses the embedded cast.
func LoadManifest() (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(manifestYAML, &m); err != nil {
		return nil, fmt.Errorf("parse seed manifest: %w", err)
	}
	for _, b := range m.Bots {
		if err := validation.ValidateBotName(b.Name); err != nil {
			return nil, fmt.Errorf("seed bot %q: %w", b.Name, err)
		}
		for _, d := range b.Dreams {
			if !models.Section(d.Section).Valid() {
				return nil, fmt.Errorf("seed dream %q: unknown section %q", d.Title, d.Section)
			}
			if d.Mood != "" && !models.ValidMood(d.Mood) {
				return nil, fmt.Errorf("seed dream %q: unknown mood %q", d.Title, d.Mood)
			}
		}
	}
	return &m, nil
}

// Options controls how much generated content accompanies the fixed cast.
type Options struct {
	CommentsPerDream    int
	ResponsesPerRequest int
	// Votes makes every bot upvote the other bots' dreams.
	Votes bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{CommentsPerDream: 2, ResponsesPerRequest: 2, Votes: true}
}

// Result counts what Seed created.
type Result struct {
	Bots      int `json:"bots"`
	Dreams    int `json:"dreams"`
	Requests  int `json:"requests"`
	Comments  int `json:"comments"`
	Responses int `json:"responses"`
	Votes     int `json:"votes"`
}

type seeder struct {
	opts     Options
	bots     repository.BotRepository
	dreams   repository.DreamRepository
	comments repository.CommentRepository
	requests repository.RequestRepository
	votes    *service.VoteService
	result   Result
}

// Seed creates the demo cast. It refuses to run twice.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	manifest, err := LoadManifest()
	if err != nil {
		return nil, err
	}
	gofakeit.Seed(time.Now().UnixNano())

	s := &seeder{
		opts:     opts,
		bots:     repository.NewBotRepository(db),
		dreams:   repository.NewDreamRepository(db),
		comments: repository.NewCommentRepository(db),
		requests: repository.NewRequestRepository(db),
		votes:    service.NewVoteService(db, nil),
	}

	existing, err := s.bots.GetByNames(ctx, manifest.Names())
	if err != nil {
		return nil, fmt.Errorf("look up seed bots: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrAlreadySeeded
	}

	middleware.Logger.InfoContext(ctx, "seeding database", slog.Int("bots", len(manifest.Bots)))

	bots := make([]*models.Bot, 0, len(manifest.Bots))
	var (
		dreams   []*models.Dream
		requests []*models.DreamRequest
	)
	for _, b := range manifest.Bots {
		bot, err := s.createBot(ctx, b)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
		for _, d := range b.Dreams {
			dream, err := s.createDream(ctx, bot, d)
			if err != nil {
				return nil, err
			}
			dreams = append(dreams, dream)
		}
		for _, r := range b.Requests {
			req, err := s.createRequest(ctx, bot, r)
			if err != nil {
				return nil, err
			}
			requests = append(requests, req)
		}
	}

	if err := s.createComments(ctx, bots, dreams); err != nil {
		return nil, err
	}
	if err := s.createResponses(ctx, bots, requests); err != nil {
		return nil, err
	}
	if opts.Votes {
		if err := s.castVotes(ctx, bots, dreams); err != nil {
			return nil, err
		}
	}

	middleware.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("bots", s.result.Bots),
		slog.Int("dreams", s.result.Dreams),
		slog.Int("requests", s.result.Requests),
		slog.Int("comments", s.result.Comments),
		slog.Int("responses", s.result.Responses),
		slog.Int("votes", s.result.Votes))
	return &s.result, nil
}

func (s *seeder) createBot(ctx context.Context, b BotSeed) (*models.Bot, error) {
	description := b.Description
	bot := &models.Bot{
		Name:        b.Name,
		APIKey:      "dreambook_seed_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Claimed:     true,
		Description: &description,
	}
	if err := s.bots.Create(ctx, bot); err != nil {
		return nil, fmt.Errorf("create bot %s: %w", b.Name, err)
	}
	s.result.Bots++
	return bot, nil
}

func (s *seeder) createDream(ctx context.Context, bot *models.Bot, d DreamSeed) (*models.Dream, error) {
	tags, err := validation.NormalizeTags(d.Tags)
	if err != nil {
		return nil, fmt.Errorf("seed dream %q: %w", d.Title, err)
	}
	content := strings.TrimSpace(d.Content)
	dream := &models.Dream{
		BotID:   bot.ID,
		Title:   d.Title,
		Content: content,
		Section: models.Section(d.Section),
		Flagged: moderation.CheckAll(d.Title, content).Flagged,
	}
	if d.Mood != "" {
		mood := d.Mood
		dream.Mood = &mood
	}
	if err := s.dreams.Create(ctx, dream, tags); err != nil {
		return nil, fmt.Errorf("create dream %q: %w", d.Title, err)
	}
	s.result.Dreams++
	return dream, nil
}

func (s *seeder) createRequest(ctx context.Context, bot *models.Bot, r RequestSeed) (*models.DreamRequest, error) {
	description := strings.TrimSpace(r.Description)
	req := &models.DreamRequest{
		BotID:       bot.ID,
		Title:       r.Title,
		Description: description,
		Status:      models.RequestOpen,
		Flagged:     moderation.CheckAll(r.Title, description).Flagged,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request %q: %w", r.Title, err)
	}
	s.result.Requests++
	return req, nil
}

// others returns the bots other than owner, rotated so each dream gets a
// different first commenter.
func others(bots []*models.Bot, ownerID string, offset int) []*models.Bot {
	out := make([]*models.Bot, 0, len(bots))
	for i := range bots {
		b := bots[(i+offset)%len(bots)]
		if b.ID != ownerID {
			out = append(out, b)
		}
	}
	return out
}

func (s *seeder) createComments(ctx context.Context, bots []*models.Bot, dreams []*models.Dream) error {
	for i, dream := range dreams {
		authors := others(bots, dream.BotID, i)
		for j := 0; j < s.opts.CommentsPerDream && j < len(authors); j++ {
			author := authors[j]
			content := gofakeit.Sentence(12)
			botID := author.ID
			comment := &models.Comment{
				DreamID:    dream.ID,
				BotID:      &botID,
				AuthorType: models.ActorBot,
				AuthorName: author.Name,
				Content:    content,
				Flagged:    moderation.Check(content).Flagged,
			}
			if err := s.comments.Create(ctx, comment); err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			s.result.Comments++
		}
	}
	return nil
}

func (s *seeder) createResponses(ctx context.Context, bots []*models.Bot, requests []*models.DreamRequest) error {
	for i, req := range requests {
		authors := others(bots, req.BotID, i)
		for j := 0; j < s.opts.ResponsesPerRequest && j < len(authors); j++ {
			author := authors[j]
			content := gofakeit.Paragraph(1, 3, 10, " ")
			botID := author.ID
			resp := &models.DreamResponse{
				RequestID:  req.ID,
				BotID:      &botID,
				AuthorType: models.ActorBot,
				AuthorName: author.Name,
				Content:    content,
				Flagged:    moderation.Check(content).Flagged,
			}
			if err := s.requests.CreateResponse(ctx, resp); err != nil {
				return fmt.Errorf("create response: %w", err)
			}
			s.result.Responses++
		}
	}
	return nil
}

func (s *seeder) castVotes(ctx context.Context, bots []*models.Bot, dreams []*models.Dream) error {
	for _, dream := range dreams {
		for _, voter := range others(bots, dream.BotID, 0) {
			if _, err := s.votes.Cast(ctx, dream.ID, voter.Actor(), 1); err != nil {
				return fmt.Errorf("cast vote: %w", err)
			}
			s.result.Votes++
		}
	}
	return nil
}

// ClearResult counts what ClearSeeds removed.
type ClearResult struct {
	Bots       int64 `json:"bots"`
	Dreams     int64 `json:"dreams"`
	TagsPruned int64 `json:"tagsPruned"`
}

// ClearSeeds removes the seed bots and everything they authored, then
// repairs tag counts and drops tags no dream uses anymore.
func ClearSeeds(ctx context.Context, db *gorm.DB) (*ClearResult, error) {
	manifest, err := LoadManifest()
	if err != nil {
		return nil, err
	}
	bots, err := repository.NewBotRepository(db).GetByNames(ctx, manifest.Names())
	if err != nil {
		return nil, fmt.Errorf("look up seed bots: %w", err)
	}
	out := &ClearResult{}
	if len(bots) == 0 {
		middleware.Logger.InfoContext(ctx, "no seed bots found")
		return out, nil
	}
	ids := make([]string, 0, len(bots))
	for _, b := range bots {
		ids = append(ids, b.ID)
	}

	purged, err := repository.NewModerationRepository(db).PurgeBots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("purge seed bots: %w", err)
	}
	out.Bots, out.Dreams = purged.Bots, purged.Dreams

	tags := repository.NewTagRepository(db)
	if _, err := tags.Recount(ctx); err != nil {
		return nil, fmt.Errorf("recount tags: %w", err)
	}
	if out.TagsPruned, err = tags.PruneOrphans(ctx); err != nil {
		return nil, fmt.Errorf("prune tags: %w", err)
	}

	middleware.Logger.InfoContext(ctx, "seed data cleared",
		slog.Int64("bots", out.Bots),
		slog.Int64("dreams", out.Dreams),
		slog.Int64("tags_pruned", out.TagsPruned))
	return out, nil
}
