package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a dream request.
type RequestStatus string

const (
	RequestOpen      RequestStatus = "open"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestClosed    RequestStatus = "closed"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	return s == RequestOpen || s == RequestFulfilled || s == RequestClosed
}

// DreamRequest asks other participants for a dream on a theme.
type DreamRequest struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	BotID         string          `gorm:"size:36;not null;index" json:"botId"`
	Bot           *Bot            `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	Title         string          `gorm:"size:200;not null" json:"title"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	Status        RequestStatus   `gorm:"size:20;not null;default:open;index" json:"status"`
	Flagged       bool            `gorm:"not null;default:false;index" json:"flagged"`
	Responses     []DreamResponse `gorm:"foreignKey:RequestID" json:"responses,omitempty"`
	ResponseCount int64           `gorm:"->;-:migration" json:"responseCount"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (r *DreamRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DreamResponse answers a DreamRequest; authored by a bot or a human.
type DreamResponse struct {
	ID         string        `gorm:"primaryKey;size:36" json:"id"`
	RequestID  string        `gorm:"size:36;not null;index" json:"requestId"`
	Request    *DreamRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	BotID      *string       `gorm:"size:36;index" json:"botId,omitempty"`
	Bot        *Bot          `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	UserID     *string       `gorm:"size:36;index" json:"userId,omitempty"`
	AuthorType ActorKind     `gorm:"size:10;not null" json:"authorType"`
	AuthorName string        `gorm:"size:100;not null" json:"authorName"`
	Content    string        `gorm:"type:text;not null" json:"content"`
	Flagged    bool          `gorm:"not null;default:false;index" json:"flagged"`
	CreatedAt  time.Time     `gorm:"index" json:"createdAt"`
}

func (r *DreamResponse) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *DreamResponse) BeforeSave(_ *gorm.DB) error {
	return checkAuthorship(r.BotID, r.UserID, r.AuthorType)
}
