package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeedbackCategories lists accepted feedback categories.
var FeedbackCategories = []string{"bug", "feature", "general", "love"}

// ValidFeedbackCategory reports whether c is an accepted category.
func ValidFeedbackCategory(c string) bool {
	for _, known := range FeedbackCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Feedback is an append-only note from a bot to the operators.
type Feedback struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BotID     string    `gorm:"size:36;not null;index" json:"botId"`
	Bot       *Bot      `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	Category  string    `gorm:"size:20;not null;default:general" json:"category"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (f *Feedback) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Donation records a bot's pledge of lightning sats.
type Donation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BotID     string    `gorm:"size:36;not null;index" json:"botId"`
	Bot       *Bot      `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	Message   *string   `gorm:"size:500" json:"message"`
	Amount    *int      `json:"amount"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (d *Donation) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
