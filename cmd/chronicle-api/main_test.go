package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lorekeep/chronicle/backend/internal/auth"
	"github.com/lorekeep/chronicle/backend/internal/config"
)

func devConfig() config.AppConfig {
	return config.AppConfig{
		SessionSigningSecret: "dev-secret",
		SessionIssuer:        "chronicle-identity",
		SessionCookieName:    "__session",
	}
}

func TestMintSessionProducesValidatableToken(t *testing.T) {
	appConfig := devConfig()

	token, err := mintSession(appConfig, sessionProfile{
		UserID:    "user_dev",
		Email:     "dev@example.com",
		FirstName: "Dev",
		LastName:  "Tester",
		Onboarded: true,
		TTL:       time.Hour,
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "__session", Value: token})
	state := validator.ReadSession(req)
	if !state.IsAuthenticated {
		t.Fatal("expected minted token to authenticate")
	}
	if state.Claims.UserID() != "user_dev" {
		t.Fatalf("unexpected subject %q", state.Claims.UserID())
	}
	if !state.Claims.Metadata.OnboardingComplete {
		t.Fatal("expected onboardingComplete metadata")
	}
}

func TestMintSessionRequiresSubject(t *testing.T) {
	if _, err := mintSession(devConfig(), sessionProfile{TTL: time.Hour}); err == nil {
		t.Fatal("expected error for missing subject")
	}
}
