package stories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultCoverImageURL = "https://placehold.co/600x400"

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errStoryNotFound     = errors.New("story not found")
	noOpLogger           = zap.NewNop()
)

// User-facing action errors. These deliberately carry no internal
// detail; the caught cause is logged server-side only.
const (
	msgUnauthorized      = "Unauthorized"
	msgMissingFields     = "Title and description are required"
	msgStoryNotFound     = "Story not found"
	msgListFailed        = "Failed to fetch stories"
	msgCreateFailed      = "Failed to create story"
	msgUpdateFailed      = "Failed to update story"
	msgDeleteFailed      = "Failed to delete story"
	msgUploadFailedFmt   = "Failed to upload image: %v"
	defaultAuthorBioText = "New author"
)

// ServiceError carries a stable operation code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "stories.service.new"
	opListStories = "stories.list"
	opCreateStory = "stories.create"
	opUpdateStory = "stories.update"
	opDeleteStory = "stories.delete"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new author and chronicle rows.
type IDProvider interface {
	NewID() (string, error)
}

// Principal is the authenticated caller of a story action. Actions only
// require that a principal exists; role gating happens at the route.
type Principal struct {
	ID        string
	FirstName string
	LastName  string
}

func (p Principal) authenticated() bool {
	return strings.TrimSpace(p.ID) != ""
}

// DisplayName renders the principal's name for a default author profile.
func (p Principal) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// CoverUpload is an optional binary asset attached to a create request.
type CoverUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// CreateInput carries the fields of a story creation action.
type CreateInput struct {
	Title         string
	Description   string
	Language      Language
	Type          StoryType
	CoverImageURL string
	Cover         *CoverUpload
}

// UpdateInput carries the fields of a story update action. The
// translation for Language is upserted; chronicle-level fields are
// written in place.
type UpdateInput struct {
	Title         string
	Description   string
	Language      Language
	CoverImageURL string
	IsPublished   bool
}

// ListResult is the structured outcome of a listing action.
type ListResult struct {
	Success bool
	Stories []Chronicle
	Error   string
}

// MutationResult is the structured outcome of a create/update/delete
// action. Failures never propagate as errors to the caller.
type MutationResult struct {
	Success bool
	Story   *Chronicle
	Error   string
}

// ServiceConfig describes the dependencies of the story service.
type ServiceConfig struct {
	Database    *gorm.DB
	ObjectStore storage.ObjectStore
	ListCache   ListCache
	Clock       func() time.Time
	IDProvider  IDProvider
	Logger      *zap.Logger
}

// Service implements the admin story actions: list, create, update,
// delete. Every store or upload failure is caught at this boundary,
// logged, and converted into a structured result.
type Service struct {
	db          *gorm.DB
	objectStore storage.ObjectStore
	cache       ListCache
	clock       func() time.Time
	idProvider  IDProvider
	logger      *zap.Logger
}

// NewService constructs the story service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cache := cfg.ListCache
	if cache == nil {
		cache = NewNoopListCache()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		objectStore: cfg.ObjectStore,
		cache:       cache,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		logger:      logger,
	}, nil
}

// ListStories returns all chronicles with their translations and author,
// newest first. The listing is served from cache when available.
func (s *Service) ListStories(ctx context.Context, principal Principal) ListResult {
	if !principal.authenticated() {
		return ListResult{Error: msgUnauthorized}
	}

	if cached, err := s.cache.Get(ctx); err == nil {
		return ListResult{Success: true, Stories: cached}
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logError(opListStories, "cache_read_failed", err)
	}

	var chronicles []Chronicle
	err := s.db.WithContext(ctx).
		Preload("Translations").
		Preload("Author").
		Preload("Author.Translations").
		Order("created_at DESC").
		Find(&chronicles).Error
	if err != nil {
		s.logError(opListStories, "query_failed", err)
		return ListResult{Error: msgListFailed}
	}

	if err := s.cache.Set(ctx, chronicles); err != nil {
		s.logError(opListStories, "cache_write_failed", err)
	}

	return ListResult{Success: true, Stories: chronicles}
}

// CreateStory validates input, uploads an optional cover image, lazily
// creates the caller's author profile, and inserts the chronicle with
// its initial translation.
func (s *Service) CreateStory(ctx context.Context, principal Principal, input CreateInput) MutationResult {
	if !principal.authenticated() {
		return MutationResult{Error: msgUnauthorized}
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return MutationResult{Error: msgMissingFields}
	}

	language := input.Language
	if language == "" {
		language = LanguageEN
	}
	storyType := input.Type
	if storyType == "" {
		storyType = StoryTypeStatic
	}

	coverImageURL := strings.TrimSpace(input.CoverImageURL)
	if coverImageURL == "" {
		coverImageURL = defaultCoverImageURL
	}
	if input.Cover != nil && input.Cover.Size > 0 {
		uploaded, err := s.uploadCover(ctx, title, input.Cover)
		if err != nil {
			s.logError(opCreateStory, "cover_upload_failed", err, zap.String("title", title))
			return MutationResult{Error: fmt.Sprintf(msgUploadFailedFmt, err)}
		}
		coverImageURL = uploaded
	}

	var created Chronicle
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author, err := s.resolveAuthor(tx, principal, language)
		if err != nil {
			return err
		}

		storyID, err := s.idProvider.NewID()
		if err != nil {
			return newServiceError(opCreateStory, "id_generation_failed", err)
		}

		created = Chronicle{
			ID:            storyID,
			CoverImageURL: coverImageURL,
			Type:          storyType,
			AuthorID:      author.ID,
			Translations: []ChronicleTranslation{{
				ChronicleID: storyID,
				Language:    language,
				Title:       title,
				Description: description,
			}},
		}
		if err := tx.Create(&created).Error; err != nil {
			return newServiceError(opCreateStory, "chronicle_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opCreateStory, "transaction_failed", txErr, zap.String("user_id", principal.ID))
		return MutationResult{Error: msgCreateFailed}
	}

	s.invalidateListing(ctx, opCreateStory)
	return MutationResult{Success: true, Story: &created}
}

// UpdateStory writes chronicle-level fields and upserts the translation
// for the given language: a missing (chronicle, language) row is
// created, an existing one is updated in place.
func (s *Service) UpdateStory(ctx context.Context, principal Principal, id string, input UpdateInput) MutationResult {
	if !principal.authenticated() {
		return MutationResult{Error: msgUnauthorized}
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return MutationResult{Error: msgMissingFields}
	}

	language := input.Language
	if language == "" {
		language = LanguageEN
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chronicle Chronicle
		if err := tx.Where("id = ?", id).Take(&chronicle).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newServiceError(opUpdateStory, "not_found", errStoryNotFound)
			}
			return newServiceError(opUpdateStory, "chronicle_select_failed", err)
		}

		updates := map[string]interface{}{
			"is_published": input.IsPublished,
		}
		if coverImageURL := strings.TrimSpace(input.CoverImageURL); coverImageURL != "" {
			updates["cover_image_url"] = coverImageURL
		}
		if err := tx.Model(&Chronicle{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return newServiceError(opUpdateStory, "chronicle_update_failed", err)
		}

		translation := ChronicleTranslation{
			ChronicleID: id,
			Language:    language,
			Title:       title,
			Description: description,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chronicle_id"}, {Name: "language"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description", "updated_at"}),
		}).Create(&translation).Error
		if err != nil {
			return newServiceError(opUpdateStory, "translation_upsert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, errStoryNotFound) {
			return MutationResult{Error: msgStoryNotFound}
		}
		s.logError(opUpdateStory, "transaction_failed", txErr, zap.String("story_id", id))
		return MutationResult{Error: msgUpdateFailed}
	}

	s.invalidateListing(ctx, opUpdateStory)
	return MutationResult{Success: true}
}

// DeleteStory removes the chronicle and its translations outright.
func (s *Service) DeleteStory(ctx context.Context, principal Principal, id string) MutationResult {
	if !principal.authenticated() {
		return MutationResult{Error: msgUnauthorized}
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chronicle_id = ?", id).Delete(&ChronicleTranslation{}).Error; err != nil {
			return newServiceError(opDeleteStory, "translation_delete_failed", err)
		}
		result := tx.Where("id = ?", id).Delete(&Chronicle{})
		if result.Error != nil {
			return newServiceError(opDeleteStory, "chronicle_delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opDeleteStory, "not_found", errStoryNotFound)
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, errStoryNotFound) {
			return MutationResult{Error: msgStoryNotFound}
		}
		s.logError(opDeleteStory, "transaction_failed", txErr, zap.String("story_id", id))
		return MutationResult{Error: msgDeleteFailed}
	}

	s.invalidateListing(ctx, opDeleteStory)
	return MutationResult{Success: true}
}

// resolveAuthor returns the caller's author row, creating a default
// profile with one translation when none exists yet. Story creation
// depends on the resolved author id, so the two inserts stay sequential
// inside the surrounding transaction.
func (s *Service) resolveAuthor(tx *gorm.DB, principal Principal, language Language) (Author, error) {
	var author Author
	err := tx.Where("user_id = ?", principal.ID).Take(&author).Error
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Author{}, newServiceError(opCreateStory, "author_select_failed", err)
	}

	authorID, err := s.idProvider.NewID()
	if err != nil {
		return Author{}, newServiceError(opCreateStory, "id_generation_failed", err)
	}

	name := principal.DisplayName()
	if name == "" {
		name = principal.ID
	}

	author = Author{
		ID:     authorID,
		UserID: principal.ID,
		Translations: []AuthorTranslation{{
			AuthorID: authorID,
			Language: language,
			Name:     name,
			Bio:      defaultAuthorBioText,
		}},
	}
	if err := tx.Create(&author).Error; err != nil {
		return Author{}, newServiceError(opCreateStory, "author_insert_failed", err)
	}
	return author, nil
}

func (s *Service) uploadCover(ctx context.Context, title string, cover *CoverUpload) (string, error) {
	if s.objectStore == nil {
		return "", errors.New("object store not configured")
	}
	fileName := path.Base(strings.TrimSpace(cover.FileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		fileName = "cover"
	}
	key := fmt.Sprintf("stories/%s/%d-%s", title, s.clock().UTC().UnixMilli(), fileName)
	return s.objectStore.Upload(ctx, key, cover.Reader, cover.Size, cover.ContentType)
}

func (s *Service) invalidateListing(ctx context.Context, operation string) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logError(operation, "cache_invalidate_failed", err)
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("stories service error", attrs...)
}
