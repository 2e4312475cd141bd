package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/auth"
	"github.com/lorekeep/chronicle/backend/internal/database"
	"github.com/lorekeep/chronicle/backend/internal/i18n"
	"github.com/lorekeep/chronicle/backend/internal/onboarding"
	"github.com/lorekeep/chronicle/backend/internal/routing"
	"github.com/lorekeep/chronicle/backend/internal/stories"
	"github.com/lorekeep/chronicle/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSigningSecret = "router-test-secret"

type fakeObjectStore struct{}

func (fakeObjectStore) Upload(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	return "https://cdn.test/covers/" + key, nil
}

type fakeIdentityProvider struct {
	user    auth.ProviderUser
	updates []auth.SessionMetadata
}

func (p *fakeIdentityProvider) CurrentUser(_ context.Context, userID string) (auth.ProviderUser, error) {
	user := p.user
	if user.ID == "" {
		user.ID = userID
	}
	return user, nil
}

func (p *fakeIdentityProvider) UpdateUserMetadata(_ context.Context, _ string, metadata auth.SessionMetadata) error {
	p.updates = append(p.updates, metadata)
	return nil
}

type testServer struct {
	handler  http.Handler
	issuer   *auth.SessionIssuer
	db       *gorm.DB
	provider *fakeIdentityProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "chronicle.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "chronicle-identity",
		CookieName:    "__session",
	})
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	usersService, err := users.NewService(users.ServiceConfig{
		Database:           db,
		SupportedLanguages: []string{"EN", "ES"},
	})
	if err != nil {
		t.Fatalf("failed to create users service: %v", err)
	}

	storiesService, err := stories.NewService(stories.ServiceConfig{
		Database:    db,
		ObjectStore: fakeObjectStore{},
		IDProvider:  stories.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create stories service: %v", err)
	}

	provider := &fakeIdentityProvider{user: auth.ProviderUser{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		EmailAddresses: []string{"ada@example.com"},
	}}
	onboardingService, err := onboarding.NewService(onboarding.ServiceConfig{
		Provider: provider,
		Users:    usersService,
	})
	if err != nil {
		t.Fatalf("failed to create onboarding service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Sessions:   validator,
		Users:      usersService,
		Stories:    storiesService,
		Onboarding: onboardingService,
		Catalog:    i18n.NewCatalog("en"),
		Classifier: routing.NewClassifier(routing.ClassifierConfig{SupportedLocales: []string{"en", "es"}}),
		Locales:    routing.NewLocaleResolver("en", []string{"en", "es"}),
		SignInPath: "/sign-in",
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testServer{
		handler: handler,
		issuer: auth.NewSessionIssuer(auth.SessionIssuerConfig{
			SigningSecret: []byte(testSigningSecret),
			Issuer:        "chronicle-identity",
			TokenTTL:      time.Hour,
		}),
		db:       db,
		provider: provider,
	}
}

func (s *testServer) request(t *testing.T, method, target, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "__session", Value: cookie})
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, req)
	return recorder
}

func (s *testServer) sessionCookie(t *testing.T, userID string, onboarded bool) string {
	t.Helper()
	token, err := s.issuer.Issue(userID, auth.SessionClaims{
		UserEmail:     "ada@example.com",
		UserFirstName: "Ada",
		UserLastName:  "Lovelace",
		Metadata:      auth.SessionMetadata{OnboardingComplete: onboarded},
	})
	if err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}
	return token
}

func (s *testServer) seedUser(t *testing.T, id string, role users.Role) {
	t.Helper()
	user := users.User{
		ID:           id,
		Email:        id + "@example.com",
		Role:         role,
		LanguagePref: "EN",
	}
	if err := s.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func decodePage(t *testing.T, recorder *httptest.ResponseRecorder) pagePayload {
	t.Helper()
	var payload pagePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode page payload: %v", err)
	}
	return payload
}

func TestPublicRoutesServeUnauthenticated(t *testing.T) {
	server := newTestServer(t)

	for _, target := range []string{"/", "/pricing", "/public-route-example"} {
		recorder := server.request(t, http.MethodGet, target, "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", target, recorder.Code)
		}
	}
}

func TestLocalePrefixResolvesMessages(t *testing.T) {
	server := newTestServer(t)

	recorder := server.request(t, http.MethodGet, "/es/pricing", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodePage(t, recorder)
	if payload.Locale != "es" {
		t.Fatalf("expected locale es, got %q", payload.Locale)
	}
	if payload.Messages["pricing.title"] != "Precios" {
		t.Fatalf("expected Spanish pricing title, got %q", payload.Messages["pricing.title"])
	}
}

func TestUnsupportedLocaleFallsBackToDefault(t *testing.T) {
	server := newTestServer(t)

	recorder := server.request(t, http.MethodGet, "/pricing", "")
	payload := decodePage(t, recorder)
	if payload.Locale != "en" {
		t.Fatalf("expected locale en, got %q", payload.Locale)
	}
	if payload.Messages["pricing.title"] != "Pricing" {
		t.Fatalf("expected English pricing title, got %q", payload.Messages["pricing.title"])
	}
}

func TestAcceptLanguageNegotiatesLocaleForUnprefixedPaths(t *testing.T) {
	server := newTestServer(t)

	for _, header := range []string{"es", "es-MX,es;q=0.9,en;q=0.5"} {
		req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
		req.Header.Set("Accept-Language", header)
		recorder := httptest.NewRecorder()
		server.handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 for header %q, got %d", header, recorder.Code)
		}
		payload := decodePage(t, recorder)
		if payload.Locale != "es" {
			t.Fatalf("expected negotiated locale es for header %q, got %q", header, payload.Locale)
		}
		if payload.Messages["pricing.title"] != "Precios" {
			t.Fatalf("expected Spanish pricing title for header %q, got %q", header, payload.Messages["pricing.title"])
		}
	}
}

func TestPathLocaleOverridesAcceptLanguage(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/en/pricing", nil)
	req.Header.Set("Accept-Language", "es")
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, req)

	payload := decodePage(t, recorder)
	if payload.Locale != "en" {
		t.Fatalf("expected path locale en, got %q", payload.Locale)
	}
}

func TestAcceptLanguageDrivesOnboardingRedirect(t *testing.T) {
	server := newTestServer(t)
	cookie := server.sessionCookie(t, "user_new", false)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept-Language", "es")
	req.AddCookie(&http.Cookie{Name: "__session", Value: cookie})
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
	if location := recorder.Header().Get("Location"); location != "/es/onboarding" {
		t.Fatalf("unexpected redirect target %q", location)
	}
}

func TestProtectedRouteRedirectsToSignIn(t *testing.T) {
	server := newTestServer(t)

	recorder := server.request(t, http.MethodGet, "/en/dashboard?tab=saved", "")
	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
	location := recorder.Header().Get("Location")
	if location != "/sign-in?redirect_url=%2Fen%2Fdashboard%3Ftab%3Dsaved" {
		t.Fatalf("unexpected redirect target %q", location)
	}
}

func TestProtectedRouteRedirectsIncompleteUserToOnboarding(t *testing.T) {
	server := newTestServer(t)
	cookie := server.sessionCookie(t, "user_new", false)

	recorder := server.request(t, http.MethodGet, "/es/dashboard", cookie)
	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
	if location := recorder.Header().Get("Location"); location != "/es/onboarding" {
		t.Fatalf("unexpected redirect target %q", location)
	}
}

func TestOnboardingPageNeverRedirectsAuthenticatedUsers(t *testing.T) {
	server := newTestServer(t)

	for _, onboarded := range []bool{false, true} {
		cookie := server.sessionCookie(t, "user_new", onboarded)
		recorder := server.request(t, http.MethodGet, "/en/onboarding", cookie)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 with onboarded=%v, got %d", onboarded, recorder.Code)
		}
	}
}

func TestProtectedRouteServesOnboardedUser(t *testing.T) {
	server := newTestServer(t)
	cookie := server.sessionCookie(t, "user_done", true)

	recorder := server.request(t, http.MethodGet, "/dashboard", cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodePage(t, recorder)
	if payload.Messages["dashboard.title"] != "Your library" {
		t.Fatalf("unexpected dashboard title %q", payload.Messages["dashboard.title"])
	}
}

func TestExpiredSessionTreatedAsUnauthenticated(t *testing.T) {
	server := newTestServer(t)
	expiredIssuer := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "chronicle-identity",
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return time.Now().Add(-time.Hour) },
	})
	token, err := expiredIssuer.Issue("user_stale", auth.SessionClaims{
		Metadata: auth.SessionMetadata{OnboardingComplete: true},
	})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	recorder := server.request(t, http.MethodGet, "/dashboard", token)
	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
	if !strings.HasPrefix(recorder.Header().Get("Location"), "/sign-in?") {
		t.Fatalf("expected sign-in redirect, got %q", recorder.Header().Get("Location"))
	}
}

func TestAdminGateRedirectsUnauthenticated(t *testing.T) {
	server := newTestServer(t)

	recorder := server.request(t, http.MethodGet, "/admin/stories", "")
	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
	if location := recorder.Header().Get("Location"); location != "/" {
		t.Fatalf("unexpected redirect target %q", location)
	}
}

func TestAdminGateRedirectsNonAdmin(t *testing.T) {
	server := newTestServer(t)
	server.seedUser(t, "user_reader", users.RoleUser)
	cookie := server.sessionCookie(t, "user_reader", true)

	recorder := server.request(t, http.MethodGet, "/admin/stories", cookie)
	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
	if location := recorder.Header().Get("Location"); location != "/" {
		t.Fatalf("unexpected redirect target %q", location)
	}
}

func TestAdminGateRedirectsUnknownUser(t *testing.T) {
	server := newTestServer(t)
	cookie := server.sessionCookie(t, "user_ghost", true)

	recorder := server.request(t, http.MethodGet, "/admin/stories", cookie)
	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
}

func TestAdminGateAdmitsAdmin(t *testing.T) {
	server := newTestServer(t)
	server.seedUser(t, "user_admin", users.RoleAdmin)
	cookie := server.sessionCookie(t, "user_admin", true)

	recorder := server.request(t, http.MethodGet, "/admin/stories", cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var response storyListResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success {
		t.Fatalf("expected success, got error %q", response.Error)
	}
	if len(response.Data) != 0 {
		t.Fatalf("expected empty story list, got %d", len(response.Data))
	}
}

func TestAdminGateIgnoresLocalePrefix(t *testing.T) {
	server := newTestServer(t)
	server.seedUser(t, "user_admin", users.RoleAdmin)
	cookie := server.sessionCookie(t, "user_admin", true)

	recorder := server.request(t, http.MethodGet, "/es/admin/stories", cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for locale-prefixed admin path, got %d", recorder.Code)
	}
}

func TestOnboardingSyncCreatesUser(t *testing.T) {
	server := newTestServer(t)
	cookie := server.sessionCookie(t, "user_new", false)

	recorder := server.request(t, http.MethodPost, "/es/onboarding/sync", cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response onboardingSyncResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success {
		t.Fatalf("expected success, got error %q", response.Error)
	}
	if response.User == nil || response.User.ID != "user_new" {
		t.Fatalf("unexpected user payload %+v", response.User)
	}
	if response.User.LanguagePref != "ES" {
		t.Fatalf("expected language pref ES, got %q", response.User.LanguagePref)
	}

	var stored users.User
	if err := server.db.Where("id = ?", "user_new").Take(&stored).Error; err != nil {
		t.Fatalf("expected persisted user: %v", err)
	}
	if stored.Email != "ada@example.com" {
		t.Fatalf("unexpected stored email %q", stored.Email)
	}
}

func TestOnboardingSyncRedirectsUnauthenticated(t *testing.T) {
	server := newTestServer(t)

	recorder := server.request(t, http.MethodPost, "/onboarding/sync", "")
	if recorder.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", recorder.Code)
	}
	if !strings.HasPrefix(recorder.Header().Get("Location"), "/sign-in?") {
		t.Fatalf("expected sign-in redirect, got %q", recorder.Header().Get("Location"))
	}
}

func TestOnboardingCompleteWritesMetadata(t *testing.T) {
	server := newTestServer(t)
	cookie := server.sessionCookie(t, "user_new", false)

	req := httptest.NewRequest(http.MethodPost, "/onboarding/complete",
		strings.NewReader(`{"selectedGender":"female","selectedTopics":["fantasy","mystery"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "__session", Value: cookie})
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response onboardingCompleteResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success {
		t.Fatalf("expected success, got error %q", response.Error)
	}
	if len(server.provider.updates) != 1 || !server.provider.updates[0].OnboardingComplete {
		t.Fatalf("expected onboardingComplete metadata write, got %+v", server.provider.updates)
	}
	if server.provider.updates[0].SelectedGender != "female" {
		t.Fatalf("unexpected gender %q", server.provider.updates[0].SelectedGender)
	}
}

func TestDelegatedRequestsSkipLocaleStash(t *testing.T) {
	admission := &admissionHandler{
		locales: routing.NewLocaleResolver("en", []string{"en", "es"}),
	}

	req := httptest.NewRequest(http.MethodGet, "/es/admin/stories", nil)
	state := auth.SessionState{IsAuthenticated: true}
	cloned := admission.delegatedRequest(req, state)

	if cloned.URL.Path != "/admin/stories" {
		t.Fatalf("expected stripped path, got %q", cloned.URL.Path)
	}
	if _, ok := cloned.Context().Value(localeContextKey{}).(string); ok {
		t.Fatal("delegated requests must not carry a locale")
	}
	stashed, ok := cloned.Context().Value(sessionContextKey{}).(auth.SessionState)
	if !ok || !stashed.IsAuthenticated {
		t.Fatal("delegated requests must carry the session snapshot")
	}
}

func TestMissingHandlerValidation(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatal("expected error for empty dependencies")
	}
}
