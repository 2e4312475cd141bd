package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/lorekeep/chronicle/backend/internal/auth"
	"github.com/lorekeep/chronicle/backend/internal/users"
	"go.uber.org/zap"
)

// User-facing action errors, detail-free by design.
const (
	msgNoLoggedInUser  = "No Logged In User"
	msgMetadataFailed  = "There was an error updating the user metadata."
	msgSyncFailed      = "Failed to sync user"
	msgUnsupportedLang = "Unsupported language"
)

var (
	errMissingProvider    = errors.New("onboarding: identity provider client required")
	errMissingUserService = errors.New("onboarding: user service required")
)

// IdentityProvider is the slice of the provider client the onboarding
// flow depends on.
type IdentityProvider interface {
	CurrentUser(ctx context.Context, userID string) (auth.ProviderUser, error)
	UpdateUserMetadata(ctx context.Context, userID string, metadata auth.SessionMetadata) error
}

// UserStore is the slice of the users service the onboarding flow
// depends on.
type UserStore interface {
	SyncUser(ctx context.Context, identity auth.ProviderUser, locale string) (users.User, error)
}

// CompleteResult is the structured outcome of the completion action.
type CompleteResult struct {
	Success  bool
	Metadata auth.SessionMetadata
	Error    string
}

// SyncResult is the structured outcome of the profile sync action.
type SyncResult struct {
	Success bool
	User    users.User
	Error   string
}

// ServiceConfig describes the onboarding service dependencies.
type ServiceConfig struct {
	Provider IdentityProvider
	Users    UserStore
	Logger   *zap.Logger
}

// Service implements the onboarding flow: a one-time profile sync into
// the local store and a preference write back to the identity provider.
type Service struct {
	provider IdentityProvider
	users    UserStore
	logger   *zap.Logger
}

// NewService constructs the onboarding service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Provider == nil {
		return nil, errMissingProvider
	}
	if cfg.Users == nil {
		return nil, errMissingUserService
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: cfg.Provider,
		users:    cfg.Users,
		logger:   logger,
	}, nil
}

// Complete marks onboarding finished and records the captured
// preferences on the identity provider's user metadata. Provider
// failures are logged and converted; nothing propagates to the caller.
func (s *Service) Complete(ctx context.Context, state auth.SessionState, selectedGender string, selectedTopics []string) CompleteResult {
	if !state.IsAuthenticated {
		return CompleteResult{Error: msgNoLoggedInUser}
	}

	metadata := auth.SessionMetadata{
		OnboardingComplete: true,
		SelectedGender:     selectedGender,
		SelectedTopics:     selectedTopics,
	}
	if err := s.provider.UpdateUserMetadata(ctx, state.Claims.UserID(), metadata); err != nil {
		s.logger.Error("failed to update user metadata",
			zap.String("user_id", state.Claims.UserID()),
			zap.Error(err))
		return CompleteResult{Error: msgMetadataFailed}
	}

	return CompleteResult{Success: true, Metadata: metadata}
}

// Sync fetches the caller's profile from the identity provider and
// creates the local user row if it does not exist yet.
func (s *Service) Sync(ctx context.Context, state auth.SessionState, locale string) SyncResult {
	if !state.IsAuthenticated {
		return SyncResult{Error: msgNoLoggedInUser}
	}

	identity, err := s.provider.CurrentUser(ctx, state.Claims.UserID())
	if err != nil {
		s.logger.Error("failed to fetch provider user",
			zap.String("user_id", state.Claims.UserID()),
			zap.Error(err))
		return SyncResult{Error: msgSyncFailed}
	}

	user, err := s.users.SyncUser(ctx, identity, locale)
	if err != nil {
		if errors.Is(err, users.ErrUnsupportedLanguage) {
			return SyncResult{Error: fmt.Sprintf("%s: %s", msgUnsupportedLang, locale)}
		}
		s.logger.Error("failed to sync user row",
			zap.String("user_id", state.Claims.UserID()),
			zap.Error(err))
		return SyncResult{Error: msgSyncFailed}
	}

	return SyncResult{Success: true, User: user}
}
