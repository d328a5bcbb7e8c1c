package identity

import (
	"time"

	"github.com/sarvangi2609/criczz/internal/apperr"
)

type Role string

const (
	RolePlayer Role = "player"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
)

var ErrUserNotFound = apperr.New(apperr.ErrNotFound, "USER_NOT_FOUND", "user not found")

// User is the slice of the identity store that other components snapshot
// into their own records.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name         string    `json:"name" gorm:"not null"`
	Phone        string    `json:"phone" gorm:"uniqueIndex;type:varchar(20)"`
	Email        string    `json:"email,omitempty"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	SkillLevel   string    `json:"skill_level,omitempty"`
	Area         string    `json:"area,omitempty"`
	Role         Role      `json:"role" gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
