package service

import (
	"context"
	"fmt"

	"dreambook/internal/database"
	"dreambook/internal/models"
	"dreambook/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Vote outcomes.
const (
	VoteCreated  = "created"
	VoteRemoved  = "removed"
	VoteSwitched = "switched"
)

// VoteResult is the outcome of casting a vote.
type VoteResult struct {
	Action       string `json:"action"`
	NewVoteCount int    `json:"newVoteCount"`
}

// VoteService keeps each dream's vote_count equal to the sum of its votes.
type VoteService struct {
	db   *gorm.DB
	feed FeedPublisher
}

// NewVoteService returns a VoteService. feed may be nil.
func NewVoteService(db *gorm.DB, feed FeedPublisher) *VoteService {
	return &VoteService{db: db, feed: feed}
}

// Cast applies voteType (+1 or -1) by voter to the dream.
//
// Voting the same direction twice removes the vote, voting the other
// direction switches it. The vote row change and the counter update commit
// together or not at all. On postgres the dream row is locked for the
// duration of the transaction so concurrent votes on one dream serialize.
func (s *VoteService) Cast(ctx context.Context, dreamID string, voter models.Actor, voteType int) (*VoteResult, error) {
	if !models.ValidVoteType(voteType) {
		return nil, models.NewValidationError("voteType must be 1 or -1")
	}
	if !voter.Valid() {
		return nil, models.NewUnauthorizedError("Authentication required to vote")
	}

	span, ctx := observability.NewSpan(ctx, "vote.cast",
		attribute.String("dream.id", dreamID),
		attribute.String("voter.type", string(voter.Kind)),
		attribute.Int("vote.type", voteType))
	defer span.End()

	var result VoteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dream, err := lockDream(tx, dreamID)
		if err != nil {
			return err
		}
		switch {
		case voter.IsBot() && dream.BotID == voter.ID:
			return models.NewForbiddenError("You cannot vote on your own dream")
		case !voter.IsBot() && dream.Section.Private():
			return models.NewForbiddenError("Humans cannot vote on dreams in The Deep Dream")
		}

		existing, err := findVote(tx, dreamID, voter)
		if err != nil {
			return err
		}

		var increment int
		switch {
		case existing == nil:
			if err := tx.Create(models.NewVote(dreamID, voter, voteType)).Error; err != nil {
				return fmt.Errorf("create vote: %w", err)
			}
			increment, result.Action = voteType, VoteCreated
		case existing.VoteType == voteType:
			if err := tx.Where("id = ?", existing.ID).Delete(&models.Vote{}).Error; err != nil {
				return fmt.Errorf("remove vote: %w", err)
			}
			increment, result.Action = -voteType, VoteRemoved
		default:
			if err := tx.Model(&models.Vote{}).Where("id = ?", existing.ID).UpdateColumn("vote_type", voteType).Error; err != nil {
				return fmt.Errorf("switch vote: %w", err)
			}
			increment, result.Action = 2*voteType, VoteSwitched
		}

		if err := tx.Model(&models.Dream{}).Where("id = ?", dreamID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", increment)).Error; err != nil {
			return fmt.Errorf("update vote count: %w", err)
		}
		return tx.Model(&models.Dream{}).Select("vote_count").Where("id = ?", dreamID).Scan(&result.NewVoteCount).Error
	})
	if err != nil {
		span.SetError(err)
		return nil, wrapNotFound(err, "Dream not found")
	}

	observability.VotesCast.WithLabelValues(result.Action, string(voter.Kind)).Inc()
	span.AddAttributes(attribute.String("vote.action", result.Action), attribute.Int("vote.count", result.NewVoteCount))
	if s.feed != nil {
		s.feed.DreamVoted(ctx, dreamID, result.Action, result.NewVoteCount)
	}
	return &result, nil
}

func lockDream(tx *gorm.DB, dreamID string) (*models.Dream, error) {
	q := tx
	if database.IsPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var dream models.Dream
	if err := q.Select("id", "bot_id", "section", "vote_count").Where("id = ?", dreamID).First(&dream).Error; err != nil {
		return nil, err
	}
	return &dream, nil
}

func findVote(tx *gorm.DB, dreamID string, voter models.Actor) (*models.Vote, error) {
	column := "user_id"
	if voter.IsBot() {
		column = "bot_id"
	}
	var votes []models.Vote
	if err := tx.Where("dream_id = ? AND "+column+" = ?", dreamID, voter.ID).Limit(1).Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	if len(votes) == 0 {
		return nil, nil
	}
	return &votes[0], nil
}
