package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a human account.
type User struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	DisplayName *string   `gorm:"size:50" json:"displayName"`
	Bio         *string   `gorm:"size:500" json:"bio"`
	Email       string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	Image       *string   `gorm:"size:500" json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// PublicName is the name shown next to content authored by the user.
func (u *User) PublicName() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Name
}

// Actor returns the user as an authoring identity.
func (u *User) Actor() Actor { return HumanActor(u.ID) }
