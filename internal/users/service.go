package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/auth"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the provider record did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUnsupportedLanguage indicates the onboarding locale is not a recognized language.
	ErrUnsupportedLanguage = errors.New("users: unsupported language")
	// ErrUserNotFound indicates no profile row exists for the given id.
	ErrUserNotFound = errors.New("users: user not found")
)

// ServiceConfig describes the dependencies required for profile management.
type ServiceConfig struct {
	Database           *gorm.DB
	SupportedLanguages []string
	Clock              func() time.Time
}

// Service manages user profile rows synced from the identity provider.
type Service struct {
	db        *gorm.DB
	languages map[string]struct{}
	now       func() time.Time
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	languages := make(map[string]struct{}, len(cfg.SupportedLanguages))
	for _, lang := range cfg.SupportedLanguages {
		code := strings.ToUpper(normalize(lang))
		if code != "" {
			languages[code] = struct{}{}
		}
	}
	return &Service{
		db:        cfg.Database,
		languages: languages,
		now:       clock,
	}, nil
}

// SyncUser ensures a profile row exists for the provider identity.
// The row is created exactly once, on first successful onboarding sync;
// subsequent calls return the existing row untouched so later profile
// edits are never clobbered by re-syncs.
func (s *Service) SyncUser(ctx context.Context, identity auth.ProviderUser, locale string) (User, error) {
	id := normalize(identity.ID)
	if id == "" {
		return User{}, ErrInvalidIdentity
	}

	var existing User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	languagePref := strings.ToUpper(normalize(locale))
	if _, ok := s.languages[languagePref]; !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, locale)
	}

	created := User{
		ID:           id,
		Email:        normalize(identity.PrimaryEmail()),
		FirstName:    normalize(identity.FirstName),
		LastName:     normalize(identity.LastName),
		Role:         RoleUser,
		LanguagePref: languagePref,
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return User{}, err
	}
	return created, nil
}

// RoleByID performs the point lookup backing the admin gate.
func (s *Service) RoleByID(ctx context.Context, id string) (Role, error) {
	id = normalize(id)
	if id == "" {
		return "", ErrInvalidIdentity
	}

	var user User
	err := s.db.WithContext(ctx).Select("role").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
