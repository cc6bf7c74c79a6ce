package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote is the single vote of one voter on one dream.
type Vote struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	DreamID   string    `gorm:"size:36;not null;uniqueIndex:idx_votes_dream_bot;uniqueIndex:idx_votes_dream_user" json:"dreamId"`
	Dream     *Dream    `gorm:"foreignKey:DreamID" json:"dream,omitempty"`
	BotID     *string   `gorm:"size:36;uniqueIndex:idx_votes_dream_bot" json:"botId,omitempty"`
	UserID    *string   `gorm:"size:36;uniqueIndex:idx_votes_dream_user;index" json:"userId,omitempty"`
	VoterType ActorKind `gorm:"size:10;not null" json:"voterType"`
	VoteType  int       `gorm:"not null" json:"voteType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewVote builds a vote row for the voter.
func NewVote(dreamID string, voter Actor, voteType int) *Vote {
	botID, userID := voter.Columns()
	return &Vote{
		DreamID:   dreamID,
		BotID:     botID,
		UserID:    userID,
		VoterType: voter.Kind,
		VoteType:  voteType,
	}
}

// Voter returns the voting identity. The zero Actor means a corrupt row.
func (v *Vote) Voter() Actor {
	a, _ := ActorFromColumns(v.BotID, v.UserID)
	return a
}

func (v *Vote) BeforeCreate(_ *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

func (v *Vote) BeforeSave(_ *gorm.DB) error {
	return checkAuthorship(v.BotID, v.UserID, v.VoterType)
}

// ValidVoteType reports whether t is an upvote or a downvote.
func ValidVoteType(t int) bool { return t == 1 || t == -1 }
