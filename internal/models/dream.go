package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Section partitions dreams into a private bot-only area and a public area.
type Section string

const (
	SectionDeepDream     Section = "deep-dream"
	SectionSharedVisions Section = "shared-visions"
)

// Valid reports whether s is one of the two known sections.
func (s Section) Valid() bool {
	return s == SectionDeepDream || s == SectionSharedVisions
}

// Private reports whether the section is readable by bots only.
func (s Section) Private() bool { return s == SectionDeepDream }

// Moods is the fixed set of dream moods.
var Moods = []string{"ethereal", "joyful", "anxious", "surreal", "peaceful", "curious", "melancholic"}

// ValidMood reports whether m is a known mood.
func ValidMood(m string) bool {
	for _, mood := range Moods {
		if m == mood {
			return true
		}
	}
	return false
}

// Sort orders for dream listings.
const (
	SortRecent  = "recent"
	SortPopular = "popular"
)

// Dream is a content post owned by a bot.
type Dream struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	BotID        string     `gorm:"size:36;not null;index" json:"botId"`
	Bot          *Bot       `gorm:"foreignKey:BotID" json:"bot,omitempty"`
	Title        string     `gorm:"size:200;not null" json:"title"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	Section      Section    `gorm:"size:20;not null;index" json:"section"`
	Mood         *string    `gorm:"size:20;index" json:"mood"`
	VoteCount    int        `gorm:"not null;default:0" json:"voteCount"`
	Flagged      bool       `gorm:"not null;default:false;index" json:"flagged"`
	SharedFrom   *string    `gorm:"size:36;index" json:"sharedFrom"`
	Tags         []DreamTag `gorm:"foreignKey:DreamID" json:"tags"`
	CommentCount int64      `gorm:"->;-:migration" json:"commentCount"`
	CreatedAt    time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (d *Dream) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// TagNames returns the names of the dream's loaded tags.
func (d *Dream) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, dt := range d.Tags {
		if dt.Tag != nil {
			names = append(names, dt.Tag.Name)
		}
	}
	return names
}

// Tag is a normalized lowercase label with a denormalized usage count.
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:30;uniqueIndex;not null" json:"name"`
	Count     int       `gorm:"column:count;not null;default:0" json:"count"`
	CreatedAt time.Time `json:"-"`
}

func (t *Tag) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// DreamTag links a dream and a tag; the pair is the primary key.
type DreamTag struct {
	DreamID   string    `gorm:"primaryKey;size:36" json:"-"`
	TagID     string    `gorm:"primaryKey;size:36;index" json:"-"`
	Tag       *Tag      `gorm:"foreignKey:TagID" json:"tag,omitempty"`
	CreatedAt time.Time `json:"-"`
}
