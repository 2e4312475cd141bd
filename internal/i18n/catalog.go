package i18n

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messageFiles embed.FS

var (
	// ErrUnknownLocale indicates that neither the requested locale nor
	// the default locale has a message bundle on disk.
	ErrUnknownLocale = errors.New("i18n: unknown locale")
	// ErrInvalidBundle indicates a malformed message file.
	ErrInvalidBundle = errors.New("i18n: invalid message bundle")
)

// Bundle maps message keys to localized strings for one locale.
type Bundle map[string]string

// Get returns the message for key, falling back to the key itself so a
// missing translation stays visible instead of rendering blank.
func (b Bundle) Get(key string) string {
	if value, ok := b[key]; ok {
		return value
	}
	return key
}

// Catalog loads and caches message bundles per locale.
type Catalog struct {
	defaultLocale string
	mu            sync.RWMutex
	bundles       map[string]Bundle
}

// NewCatalog constructs a catalog with the given fallback locale.
func NewCatalog(defaultLocale string) *Catalog {
	return &Catalog{
		defaultLocale: strings.ToLower(strings.TrimSpace(defaultLocale)),
		bundles:       make(map[string]Bundle),
	}
}

// Load returns the message bundle for the locale, falling back to the
// default locale when the requested one has no bundle.
func (c *Catalog) Load(locale string) (Bundle, error) {
	code := strings.ToLower(strings.TrimSpace(locale))
	if code == "" {
		code = c.defaultLocale
	}

	if bundle, ok := c.cached(code); ok {
		return bundle, nil
	}

	bundle, err := c.read(code)
	if errors.Is(err, ErrUnknownLocale) && code != c.defaultLocale {
		code = c.defaultLocale
		if cached, ok := c.cached(code); ok {
			return cached, nil
		}
		bundle, err = c.read(code)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.bundles[code] = bundle
	c.mu.Unlock()
	return bundle, nil
}

func (c *Catalog) cached(code string) (Bundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bundle, ok := c.bundles[code]
	return bundle, ok
}

func (c *Catalog) read(code string) (Bundle, error) {
	raw, err := messageFiles.ReadFile("messages/" + code + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocale, code)
	}
	var bundle Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBundle, code, err)
	}
	return bundle, nil
}
