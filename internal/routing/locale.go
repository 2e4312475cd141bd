package routing

import (
	"strings"

	"golang.org/x/text/language"
)

// LocaleResolver extracts the active locale from a request path and
// validates it against the supported set. Unknown or missing codes fall
// back to the default locale without erroring.
type LocaleResolver struct {
	defaultLocale string
	supported     map[string]string
	matcher       language.Matcher
	tags          []string
}

// NewLocaleResolver builds a resolver over the supported locale codes.
// The default locale must be a member of the supported set; callers are
// expected to validate configuration before construction.
func NewLocaleResolver(defaultLocale string, supportedLocales []string) *LocaleResolver {
	supported := make(map[string]string, len(supportedLocales))
	tags := make([]language.Tag, 0, len(supportedLocales))
	codes := make([]string, 0, len(supportedLocales))
	for _, locale := range supportedLocales {
		code := strings.ToLower(strings.TrimSpace(locale))
		if code == "" {
			continue
		}
		if _, exists := supported[code]; exists {
			continue
		}
		supported[code] = code
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		codes = append(codes, code)
	}

	return &LocaleResolver{
		defaultLocale: strings.ToLower(strings.TrimSpace(defaultLocale)),
		supported:     supported,
		matcher:       language.NewMatcher(tags),
		tags:          codes,
	}
}

// DefaultLocale returns the configured fallback locale code.
func (r *LocaleResolver) DefaultLocale() string {
	return r.defaultLocale
}

// Supported reports whether the given code is a recognized locale.
func (r *LocaleResolver) Supported(code string) bool {
	_, ok := r.supported[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// Resolve extracts the locale from the first path segment, substituting
// the default when the segment is absent or unsupported.
func (r *LocaleResolver) Resolve(requestPath string) string {
	segments := splitPath(requestPath)
	if len(segments) == 0 {
		return r.defaultLocale
	}
	candidate := strings.ToLower(segments[0])
	if _, ok := r.supported[candidate]; ok {
		return candidate
	}
	return r.defaultLocale
}

// Match resolves an Accept-Language header against the supported set,
// falling back to the default locale when nothing matches.
func (r *LocaleResolver) Match(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" || len(r.tags) == 0 {
		return r.defaultLocale
	}
	requested, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(requested) == 0 {
		return r.defaultLocale
	}
	_, index, confidence := r.matcher.Match(requested...)
	if confidence == language.No || index < 0 || index >= len(r.tags) {
		return r.defaultLocale
	}
	return r.tags[index]
}
