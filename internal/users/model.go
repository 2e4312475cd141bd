package users

import (
	"strings"
	"time"
)

// Role is the coarse authorization level stored on a user record.
type Role string

const (
	// RoleUser is the default role granted at onboarding sync.
	RoleUser Role = "USER"
	// RoleAdmin unlocks the admin surface.
	RoleAdmin Role = "ADMIN"
)

// User is the durable profile row keyed by the identity provider's
// subject id. It is created at most once per identity and never deleted
// by this code.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email        string    `gorm:"column:email;size:320"`
	FirstName    string    `gorm:"column:first_name;size:190"`
	LastName     string    `gorm:"column:last_name;size:190"`
	Role         Role      `gorm:"column:role;size:16;not null;default:USER"`
	LanguagePref string    `gorm:"column:language_pref;size:8"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user profiles.
func (User) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
