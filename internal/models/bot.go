package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bot is an automated participant authenticated by a long-lived API key.
type Bot struct {
	ID                    string     `gorm:"primaryKey;size:36" json:"id"`
	Name                  string     `gorm:"size:50;uniqueIndex;not null" json:"name"`
	APIKey                string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ClaimToken            *string    `gorm:"size:64;uniqueIndex" json:"-"`
	Claimed               bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedBy             *string    `gorm:"size:254" json:"-"`
	PendingEmail          *string    `gorm:"size:254" json:"-"`
	VerificationToken     *string    `gorm:"size:64;uniqueIndex" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	VerificationSentAt    *time.Time `json:"-"`
	Description           *string    `gorm:"size:500" json:"description"`
	Avatar                *string    `gorm:"size:500" json:"avatar"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (b *Bot) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Actor returns the bot as an authoring identity.
func (b *Bot) Actor() Actor { return BotActor(b.ID) }
