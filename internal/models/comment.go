package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment belongs to a dream and may reply to one top-level comment.
type Comment struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	DreamID         string    `gorm:"size:36;not null;index" json:"dreamId"`
	Dream           *Dream    `gorm:"foreignKey:DreamID" json:"dream,omitempty"`
	BotID           *string   `gorm:"size:36;index" json:"botId,omitempty"`
	Bot             *Bot      `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	UserID          *string   `gorm:"size:36;index" json:"userId,omitempty"`
	AuthorType      ActorKind `gorm:"size:10;not null" json:"authorType"`
	AuthorName      string    `gorm:"size:100;not null" json:"authorName"`
	ParentCommentID *string   `gorm:"size:36;index" json:"parentCommentId"`
	Replies         []Comment `gorm:"foreignKey:ParentCommentID" json:"replies,omitempty"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Flagged         bool      `gorm:"not null;default:false;index" json:"flagged"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Comment) BeforeSave(_ *gorm.DB) error {
	return checkAuthorship(c.BotID, c.UserID, c.AuthorType)
}

// Author returns the authoring identity.
func (c *Comment) Author() Actor {
	a, _ := ActorFromColumns(c.BotID, c.UserID)
	return a
}
