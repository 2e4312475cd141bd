package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/auth"
	"github.com/lorekeep/chronicle/backend/internal/i18n"
	"github.com/lorekeep/chronicle/backend/internal/onboarding"
	"github.com/lorekeep/chronicle/backend/internal/stories"
	"github.com/lorekeep/chronicle/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	usersService      *users.Service
	storiesService    *stories.Service
	onboardingService *onboarding.Service
	catalog           *i18n.Catalog
	logger            *zap.Logger
}

type pagePayload struct {
	Locale   string      `json:"locale"`
	Messages i18n.Bundle `json:"messages"`
}

func (h *httpHandler) renderPage(c *gin.Context) {
	locale := requestLocale(c)
	bundle, err := h.catalog.Load(locale)
	if err != nil {
		h.logger.Error("failed to load message bundle", zap.String("locale", locale), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "messages_unavailable"})
		return
	}
	c.JSON(http.StatusOK, pagePayload{Locale: locale, Messages: bundle})
}

func (h *httpHandler) handleHome(c *gin.Context)          { h.renderPage(c) }
func (h *httpHandler) handlePricing(c *gin.Context)       { h.renderPage(c) }
func (h *httpHandler) handlePublicExample(c *gin.Context) { h.renderPage(c) }
func (h *httpHandler) handleDashboard(c *gin.Context)     { h.renderPage(c) }

func (h *httpHandler) handleOnboardingPage(c *gin.Context) { h.renderPage(c) }

type onboardingSyncResponse struct {
	Success bool          `json:"success"`
	User    *userResponse `json:"user,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
	LanguagePref string `json:"language_pref"`
}

func (h *httpHandler) handleOnboardingSync(c *gin.Context) {
	state := requestSession(c)
	locale := requestLocale(c)

	result := h.onboardingService.Sync(c.Request.Context(), state, locale)
	if !result.Success {
		c.JSON(http.StatusOK, onboardingSyncResponse{Error: result.Error})
		return
	}
	c.JSON(http.StatusOK, onboardingSyncResponse{
		Success: true,
		User: &userResponse{
			ID:           result.User.ID,
			Email:        result.User.Email,
			FirstName:    result.User.FirstName,
			LastName:     result.User.LastName,
			Role:         string(result.User.Role),
			LanguagePref: result.User.LanguagePref,
		},
	})
}

type onboardingCompleteRequest struct {
	SelectedGender string   `json:"selectedGender" form:"selectedGender"`
	SelectedTopics []string `json:"selectedTopics" form:"selectedTopics"`
}

type onboardingCompleteResponse struct {
	Success  bool                  `json:"success"`
	Metadata *auth.SessionMetadata `json:"metadata,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (h *httpHandler) handleOnboardingComplete(c *gin.Context) {
	var request onboardingCompleteRequest
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	state := requestSession(c)
	result := h.onboardingService.Complete(c.Request.Context(), state, request.SelectedGender, request.SelectedTopics)
	if !result.Success {
		c.JSON(http.StatusOK, onboardingCompleteResponse{Error: result.Error})
		return
	}
	c.JSON(http.StatusOK, onboardingCompleteResponse{Success: true, Metadata: &result.Metadata})
}

// requireAdmin is the second, independent gate layered on top of the
// admission middleware for the admin surface: it re-reads the session
// and checks the stored role, redirecting non-admins to the site root.
func (h *httpHandler) requireAdmin(c *gin.Context) {
	state := requestSession(c)
	if !state.IsAuthenticated {
		c.Redirect(http.StatusTemporaryRedirect, "/")
		c.Abort()
		return
	}

	role, err := h.usersService.RoleByID(c.Request.Context(), state.Claims.UserID())
	if err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			h.logger.Error("admin role lookup failed",
				zap.String("user_id", state.Claims.UserID()),
				zap.Error(err))
		}
		c.Redirect(http.StatusTemporaryRedirect, "/")
		c.Abort()
		return
	}
	if role != users.RoleAdmin {
		c.Redirect(http.StatusTemporaryRedirect, "/")
		c.Abort()
		return
	}
	c.Next()
}

func principalFrom(state auth.SessionState) stories.Principal {
	if !state.IsAuthenticated {
		return stories.Principal{}
	}
	return stories.Principal{
		ID:        state.Claims.UserID(),
		FirstName: state.Claims.UserFirstName,
		LastName:  state.Claims.UserLastName,
	}
}

type translationResponse struct {
	Language    string `json:"language"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type authorTranslationResponse struct {
	Language string `json:"language"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
}

type authorResponse struct {
	ID           string                      `json:"id"`
	UserID       string                      `json:"user_id"`
	Translations []authorTranslationResponse `json:"translations"`
}

type storyResponse struct {
	ID            string                `json:"id"`
	CoverImageURL string                `json:"cover_image_url"`
	Type          string                `json:"type"`
	IsPublished   bool                  `json:"is_published"`
	AuthorID      string                `json:"author_id"`
	CreatedAt     time.Time             `json:"created_at"`
	Translations  []translationResponse `json:"translations"`
	Author        *authorResponse       `json:"author,omitempty"`
}

type storyListResponse struct {
	Success bool            `json:"success"`
	Data    []storyResponse `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type storyMutationResponse struct {
	Success bool           `json:"success"`
	Data    *storyResponse `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func toStoryResponse(chronicle stories.Chronicle, includeAuthor bool) storyResponse {
	response := storyResponse{
		ID:            chronicle.ID,
		CoverImageURL: chronicle.CoverImageURL,
		Type:          string(chronicle.Type),
		IsPublished:   chronicle.IsPublished,
		AuthorID:      chronicle.AuthorID,
		CreatedAt:     chronicle.CreatedAt,
		Translations:  make([]translationResponse, 0, len(chronicle.Translations)),
	}
	for _, translation := range chronicle.Translations {
		response.Translations = append(response.Translations, translationResponse{
			Language:    string(translation.Language),
			Title:       translation.Title,
			Description: translation.Description,
		})
	}
	if includeAuthor && chronicle.Author.ID != "" {
		author := authorResponse{
			ID:           chronicle.Author.ID,
			UserID:       chronicle.Author.UserID,
			Translations: make([]authorTranslationResponse, 0, len(chronicle.Author.Translations)),
		}
		for _, translation := range chronicle.Author.Translations {
			author.Translations = append(author.Translations, authorTranslationResponse{
				Language: string(translation.Language),
				Name:     translation.Name,
				Bio:      translation.Bio,
			})
		}
		response.Author = &author
	}
	return response
}

func (h *httpHandler) handleListStories(c *gin.Context) {
	result := h.storiesService.ListStories(c.Request.Context(), principalFrom(requestSession(c)))
	if !result.Success {
		c.JSON(http.StatusOK, storyListResponse{Error: result.Error})
		return
	}

	response := storyListResponse{Success: true, Data: make([]storyResponse, 0, len(result.Stories))}
	for _, chronicle := range result.Stories {
		response.Data = append(response.Data, toStoryResponse(chronicle, true))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleCreateStory(c *gin.Context) {
	language, err := parseOptionalLanguage(c.PostForm("language"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_language"})
		return
	}
	storyType, err := stories.ParseStoryType(c.PostForm("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_story_type"})
		return
	}

	input := stories.CreateInput{
		Title:         c.PostForm("title"),
		Description:   c.PostForm("description"),
		Language:      language,
		Type:          storyType,
		CoverImageURL: c.PostForm("coverImageUrl"),
	}

	if fileHeader, err := c.FormFile("coverImage"); err == nil && fileHeader != nil && fileHeader.Size > 0 {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			h.logger.Error("failed to open cover upload", zap.Error(openErr))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_upload"})
			return
		}
		defer file.Close()
		input.Cover = &stories.CoverUpload{
			FileName:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Reader:      file,
		}
	}

	result := h.storiesService.CreateStory(c.Request.Context(), principalFrom(requestSession(c)), input)
	if !result.Success {
		c.JSON(http.StatusOK, storyMutationResponse{Error: result.Error})
		return
	}
	response := toStoryResponse(*result.Story, false)
	c.JSON(http.StatusOK, storyMutationResponse{Success: true, Data: &response})
}

type updateStoryRequest struct {
	Title         string `json:"title" form:"title"`
	Description   string `json:"description" form:"description"`
	Language      string `json:"language" form:"language"`
	CoverImageURL string `json:"coverImageUrl" form:"coverImageUrl"`
	IsPublished   bool   `json:"isPublished" form:"isPublished"`
}

func (h *httpHandler) handleUpdateStory(c *gin.Context) {
	var request updateStoryRequest
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	language, err := parseOptionalLanguage(request.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_language"})
		return
	}

	result := h.storiesService.UpdateStory(c.Request.Context(), principalFrom(requestSession(c)), c.Param("id"), stories.UpdateInput{
		Title:         request.Title,
		Description:   request.Description,
		Language:      language,
		CoverImageURL: request.CoverImageURL,
		IsPublished:   request.IsPublished,
	})
	if !result.Success {
		c.JSON(http.StatusOK, storyMutationResponse{Error: result.Error})
		return
	}
	c.JSON(http.StatusOK, storyMutationResponse{Success: true})
}

func (h *httpHandler) handleDeleteStory(c *gin.Context) {
	result := h.storiesService.DeleteStory(c.Request.Context(), principalFrom(requestSession(c)), c.Param("id"))
	if !result.Success {
		c.JSON(http.StatusOK, storyMutationResponse{Error: result.Error})
		return
	}
	c.JSON(http.StatusOK, storyMutationResponse{Success: true})
}

func parseOptionalLanguage(raw string) (stories.Language, error) {
	if raw == "" {
		return stories.LanguageEN, nil
	}
	return stories.ParseLanguage(raw)
}
