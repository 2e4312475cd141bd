package stories

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Language enumerates the translation languages carried by content rows.
type Language string

const (
	LanguageEN Language = "EN"
	LanguageES Language = "ES"
)

// StoryType distinguishes fixed chronicle text from AI-driven branching.
type StoryType string

const (
	StoryTypeStatic    StoryType = "STATIC"
	StoryTypeDynamicAI StoryType = "DYNAMIC_AI"
)

var (
	// ErrInvalidLanguage indicates an unrecognized translation language.
	ErrInvalidLanguage = errors.New("stories: invalid language")
	// ErrInvalidStoryType indicates an unrecognized story type.
	ErrInvalidStoryType = errors.New("stories: invalid story type")
)

// ParseLanguage validates raw input against the supported language set.
func ParseLanguage(raw string) (Language, error) {
	switch Language(strings.ToUpper(strings.TrimSpace(raw))) {
	case LanguageEN:
		return LanguageEN, nil
	case LanguageES:
		return LanguageES, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, raw)
	}
}

// ParseStoryType validates raw input, defaulting empty input to STATIC.
func ParseStoryType(raw string) (StoryType, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return StoryTypeStatic, nil
	}
	switch StoryType(trimmed) {
	case StoryTypeStatic:
		return StoryTypeStatic, nil
	case StoryTypeDynamicAI:
		return StoryTypeDynamicAI, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStoryType, raw)
	}
}

// Author links a user to their authored chronicles. The row is created
// lazily on the user's first story-authoring action.
type Author struct {
	ID           string              `gorm:"column:id;primaryKey;size:190;not null"`
	UserID       string              `gorm:"column:user_id;size:190;not null;uniqueIndex"`
	Translations []AuthorTranslation `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing authors.
func (Author) TableName() string {
	return "authors"
}

// AuthorTranslation is the localized projection of an author profile,
// unique per (author, language).
type AuthorTranslation struct {
	AuthorID  string    `gorm:"column:author_id;primaryKey;size:190;not null"`
	Language  Language  `gorm:"column:language;primaryKey;size:8;not null"`
	Name      string    `gorm:"column:name;size:320;not null"`
	Bio       string    `gorm:"column:bio"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing author translations.
func (AuthorTranslation) TableName() string {
	return "author_translations"
}

// Chronicle is the primary content unit: one story with localized
// translations. A chronicle always has at least one translation at
// creation time.
type Chronicle struct {
	ID            string                 `gorm:"column:id;primaryKey;size:190;not null"`
	CoverImageURL string                 `gorm:"column:cover_image_url;size:512"`
	Type          StoryType              `gorm:"column:type;size:16;not null;default:STATIC"`
	IsPublished   bool                   `gorm:"column:is_published;not null;default:false"`
	AuthorID      string                 `gorm:"column:author_id;size:190;not null;index"`
	Author        Author                 `gorm:"foreignKey:AuthorID"`
	Translations  []ChronicleTranslation `gorm:"foreignKey:ChronicleID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing chronicles.
func (Chronicle) TableName() string {
	return "chronicles"
}

// ChronicleTranslation is the localized projection of a chronicle,
// unique per (chronicle, language) with upsert semantics on update.
type ChronicleTranslation struct {
	ChronicleID string    `gorm:"column:chronicle_id;primaryKey;size:190;not null"`
	Language    Language  `gorm:"column:language;primaryKey;size:8;not null"`
	Title       string    `gorm:"column:title;size:320;not null"`
	Description string    `gorm:"column:description;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing chronicle translations.
func (ChronicleTranslation) TableName() string {
	return "chronicle_translations"
}
