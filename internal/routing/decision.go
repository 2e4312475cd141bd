package routing

import "github.com/lorekeep/chronicle/backend/internal/auth"

// DecisionKind enumerates the possible admission outcomes.
type DecisionKind string

const (
	// DecisionAllow admits the request and applies locale handling.
	DecisionAllow DecisionKind = "allow"
	// DecisionDelegate admits the request without locale handling; the
	// route's own layout performs authorization downstream.
	DecisionDelegate DecisionKind = "delegate"
	// DecisionRedirectSignIn bounces the request to the sign-in page,
	// preserving the original URL as a return parameter.
	DecisionRedirectSignIn DecisionKind = "redirect_sign_in"
	// DecisionRedirectOnboarding bounces the request to the
	// locale-scoped onboarding page.
	DecisionRedirectOnboarding DecisionKind = "redirect_onboarding"
)

// Decision is the single admission outcome computed per request.
type Decision struct {
	Kind DecisionKind
	// Locale is set for allow and redirect-onboarding outcomes.
	Locale string
	// ReturnURL is set for sign-in redirects.
	ReturnURL string
}

// Decide evaluates the admission table over the classified route, the
// resolved locale, and the session snapshot. It is evaluated exactly
// once per request and must stay loop-free: an authenticated request on
// the onboarding route is always admitted, even with onboarding
// incomplete, so the onboarding page can never redirect to itself.
func Decide(class RouteClass, locale string, originalURL string, state auth.SessionState) Decision {
	switch class {
	case ClassPrivateNoLocale:
		return Decision{Kind: DecisionDelegate}
	case ClassPublic:
		return Decision{Kind: DecisionAllow, Locale: locale}
	case ClassOnboarding:
		if !state.IsAuthenticated {
			return Decision{Kind: DecisionRedirectSignIn, ReturnURL: originalURL}
		}
		return Decision{Kind: DecisionAllow, Locale: locale}
	default:
		// ClassDashboard and ClassProtected share the same policy.
		if !state.IsAuthenticated {
			return Decision{Kind: DecisionRedirectSignIn, ReturnURL: originalURL}
		}
		if !state.Claims.Metadata.OnboardingComplete {
			return Decision{Kind: DecisionRedirectOnboarding, Locale: locale}
		}
		return Decision{Kind: DecisionAllow, Locale: locale}
	}
}
