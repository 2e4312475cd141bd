package routing

import (
	"path"
	"strings"
)

// RouteClass is the policy bucket assigned to a request path before an
// access decision is made.
type RouteClass string

const (
	// ClassPrivateNoLocale bypasses localization entirely; the route's
	// own layout performs its authorization downstream.
	ClassPrivateNoLocale RouteClass = "private_no_locale"
	// ClassOnboarding covers the one-time preference-capture flow.
	ClassOnboarding RouteClass = "onboarding"
	// ClassPublic covers the marketing allow-list and static assets.
	ClassPublic RouteClass = "public"
	// ClassDashboard covers the authenticated application surface.
	ClassDashboard RouteClass = "dashboard"
	// ClassProtected is the default bucket for unmatched paths.
	ClassProtected RouteClass = "protected"
)

// staticAssetExtensions mirrors the extensions excluded from auth and
// locale processing by the edge matcher.
var staticAssetExtensions = map[string]struct{}{
	".html": {}, ".htm": {}, ".css": {}, ".js": {}, ".jpg": {}, ".jpeg": {},
	".webp": {}, ".png": {}, ".gif": {}, ".svg": {}, ".ttf": {}, ".woff": {},
	".woff2": {}, ".ico": {}, ".csv": {}, ".doc": {}, ".docx": {}, ".xls": {},
	".xlsx": {}, ".zip": {}, ".webmanifest": {},
}

type rule struct {
	match func(path string) bool
	class RouteClass
}

// ClassifierConfig tunes the pattern table. Zero values fall back to the
// product's route layout.
type ClassifierConfig struct {
	// PublicPaths is the exact-match allow-list evaluated after any
	// leading locale segment is stripped.
	PublicPaths []string
	// SupportedLocales is used to recognize and strip locale prefixes
	// during matching.
	SupportedLocales []string
}

// Classifier assigns route classes with an ordered first-match-wins rule
// table. It is a pure function of the path and the static configuration:
// no I/O, deterministic, and unmatched paths land in ClassProtected.
type Classifier struct {
	rules []rule
}

var defaultPublicPaths = []string{"/", "/pricing", "/public-route-example", "/sign-in"}

// NewClassifier builds the rule table in required precedence order.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	publicPaths := cfg.PublicPaths
	if len(publicPaths) == 0 {
		publicPaths = defaultPublicPaths
	}
	publicSet := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		publicSet[normalizePath(p)] = struct{}{}
	}

	locales := make(map[string]struct{}, len(cfg.SupportedLocales))
	for _, locale := range cfg.SupportedLocales {
		locales[strings.ToLower(strings.TrimSpace(locale))] = struct{}{}
	}

	stripLocale := func(p string) string {
		segments := splitPath(p)
		if len(segments) == 0 {
			return "/"
		}
		if _, ok := locales[strings.ToLower(segments[0])]; ok {
			return normalizePath("/" + strings.Join(segments[1:], "/"))
		}
		return normalizePath(p)
	}

	return &Classifier{rules: []rule{
		{
			// Admin and generic API prefixes never receive locale
			// rewriting; their layout owns the authorization check.
			match: func(p string) bool {
				stripped := stripLocale(p)
				return hasSegmentPrefix(stripped, "admin") ||
					hasSegmentPrefix(stripped, "api") ||
					hasSegmentPrefix(stripped, "trpc")
			},
			class: ClassPrivateNoLocale,
		},
		{
			// The onboarding page and its action endpoints share a
			// class so an incomplete user can still submit the flow.
			match: func(p string) bool {
				return hasSegmentPrefix(stripLocale(p), "onboarding")
			},
			class: ClassOnboarding,
		},
		{
			match: func(p string) bool {
				stripped := stripLocale(p)
				if _, ok := publicSet[stripped]; ok {
					return true
				}
				ext := strings.ToLower(path.Ext(stripped))
				_, isAsset := staticAssetExtensions[ext]
				return isAsset
			},
			class: ClassPublic,
		},
		{
			match: func(p string) bool {
				return hasSegmentPrefix(stripLocale(p), "dashboard")
			},
			class: ClassDashboard,
		},
	}}
}

// Classify returns the policy class for the request path.
func (c *Classifier) Classify(requestPath string) RouteClass {
	normalized := normalizePath(requestPath)
	for _, r := range c.rules {
		if r.match(normalized) {
			return r.class
		}
	}
	return ClassProtected
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

func splitPath(p string) []string {
	trimmed := strings.Trim(normalizePath(p), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func hasSegmentPrefix(p, segment string) bool {
	segments := splitPath(p)
	return len(segments) > 0 && strings.EqualFold(segments[0], segment)
}
