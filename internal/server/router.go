package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/auth"
	"github.com/lorekeep/chronicle/backend/internal/i18n"
	"github.com/lorekeep/chronicle/backend/internal/onboarding"
	"github.com/lorekeep/chronicle/backend/internal/routing"
	"github.com/lorekeep/chronicle/backend/internal/stories"
	"github.com/lorekeep/chronicle/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultSignInPath = "/sign-in"

var (
	errMissingSessionValidator  = errors.New("session validator dependency required")
	errMissingUsersService      = errors.New("users service dependency required")
	errMissingStoriesService    = errors.New("stories service dependency required")
	errMissingOnboardingService = errors.New("onboarding service dependency required")
	errMissingCatalog           = errors.New("i18n catalog dependency required")
	errMissingClassifier        = errors.New("route classifier dependency required")
	errMissingLocaleResolver    = errors.New("locale resolver dependency required")
)

type localeContextKey struct{}
type sessionContextKey struct{}

// Dependencies wires the HTTP surface to its collaborating services.
type Dependencies struct {
	Sessions   *auth.SessionValidator
	Users      *users.Service
	Stories    *stories.Service
	Onboarding *onboarding.Service
	Catalog    *i18n.Catalog
	Classifier *routing.Classifier
	Locales    *routing.LocaleResolver
	SignInPath string
	Logger     *zap.Logger
}

// NewHTTPHandler assembles the admission pipeline around the gin engine.
// Every inbound request is classified, locale-resolved, and session-read
// exactly once; the resulting decision either redirects or delegates to
// the route handlers with the locale prefix stripped.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Stories == nil {
		return nil, errMissingStoriesService
	}
	if deps.Onboarding == nil {
		return nil, errMissingOnboardingService
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalog
	}
	if deps.Classifier == nil {
		return nil, errMissingClassifier
	}
	if deps.Locales == nil {
		return nil, errMissingLocaleResolver
	}

	signInPath := strings.TrimSpace(deps.SignInPath)
	if signInPath == "" {
		signInPath = defaultSignInPath
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		usersService:      deps.Users,
		storiesService:    deps.Stories,
		onboardingService: deps.Onboarding,
		catalog:           deps.Catalog,
		logger:            logger,
	}

	router.GET("/", handler.handleHome)
	router.GET("/pricing", handler.handlePricing)
	router.GET("/public-route-example", handler.handlePublicExample)
	router.GET("/dashboard", handler.handleDashboard)
	router.GET("/onboarding", handler.handleOnboardingPage)
	router.POST("/onboarding/sync", handler.handleOnboardingSync)
	router.POST("/onboarding/complete", handler.handleOnboardingComplete)

	admin := router.Group("/admin")
	admin.Use(handler.requireAdmin)
	admin.GET("/stories", handler.handleListStories)
	admin.POST("/stories", handler.handleCreateStory)
	admin.PUT("/stories/:id", handler.handleUpdateStory)
	admin.DELETE("/stories/:id", handler.handleDeleteStory)

	return &admissionHandler{
		engine:     router,
		sessions:   deps.Sessions,
		classifier: deps.Classifier,
		locales:    deps.Locales,
		signInPath: signInPath,
		logger:     logger,
	}, nil
}

// admissionHandler runs the access decision procedure ahead of routing.
type admissionHandler struct {
	engine     *gin.Engine
	sessions   *auth.SessionValidator
	classifier *routing.Classifier
	locales    *routing.LocaleResolver
	signInPath string
	logger     *zap.Logger
}

func (a *admissionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestPath := r.URL.Path
	class := a.classifier.Classify(requestPath)
	locale := a.resolveLocale(r)
	state := a.sessions.ReadSession(r)

	decision := routing.Decide(class, locale, r.URL.RequestURI(), state)
	switch decision.Kind {
	case routing.DecisionRedirectSignIn:
		target := a.signInPath + "?redirect_url=" + url.QueryEscape(decision.ReturnURL)
		a.logger.Debug("redirecting to sign-in",
			zap.String("path", requestPath),
			zap.String("class", string(class)))
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	case routing.DecisionRedirectOnboarding:
		a.logger.Debug("redirecting to onboarding",
			zap.String("path", requestPath),
			zap.String("locale", decision.Locale))
		http.Redirect(w, r, "/"+decision.Locale+"/onboarding", http.StatusTemporaryRedirect)
	case routing.DecisionDelegate:
		a.engine.ServeHTTP(w, a.delegatedRequest(r, state))
	default:
		a.engine.ServeHTTP(w, a.localizedRequest(r, locale, state))
	}
}

// resolveLocale prefers an explicit locale path segment; unprefixed
// paths negotiate against the Accept-Language header instead of
// falling straight to the default.
func (a *admissionHandler) resolveLocale(r *http.Request) string {
	trimmed := strings.TrimPrefix(r.URL.Path, "/")
	segment, _, _ := strings.Cut(trimmed, "/")
	if a.locales.Supported(segment) {
		return strings.ToLower(segment)
	}
	return a.locales.Match(r.Header.Get("Accept-Language"))
}

// localizedRequest stashes the locale and session snapshot for the
// route handlers and strips a leading supported-locale segment so the
// engine routes on locale-free paths.
func (a *admissionHandler) localizedRequest(r *http.Request, locale string, state auth.SessionState) *http.Request {
	ctx := context.WithValue(r.Context(), localeContextKey{}, locale)
	ctx = context.WithValue(ctx, sessionContextKey{}, state)

	cloned := r.Clone(ctx)
	cloned.URL.Path = a.stripLocalePrefix(r.URL.Path)
	return cloned
}

// delegatedRequest carries the session snapshot but no locale: the
// admin surface performs its own authorization and skips localization
// entirely. The locale prefix is still stripped so locale-prefixed
// admin URLs route.
func (a *admissionHandler) delegatedRequest(r *http.Request, state auth.SessionState) *http.Request {
	ctx := context.WithValue(r.Context(), sessionContextKey{}, state)

	cloned := r.Clone(ctx)
	cloned.URL.Path = a.stripLocalePrefix(r.URL.Path)
	return cloned
}

func (a *admissionHandler) stripLocalePrefix(requestPath string) string {
	trimmed := strings.TrimPrefix(requestPath, "/")
	segment, rest, _ := strings.Cut(trimmed, "/")
	if !a.locales.Supported(segment) {
		return requestPath
	}
	if rest == "" {
		return "/"
	}
	return "/" + rest
}

func requestLocale(c *gin.Context) string {
	if locale, ok := c.Request.Context().Value(localeContextKey{}).(string); ok {
		return locale
	}
	return ""
}

func requestSession(c *gin.Context) auth.SessionState {
	if state, ok := c.Request.Context().Value(sessionContextKey{}).(auth.SessionState); ok {
		return state
	}
	return auth.SessionState{}
}
