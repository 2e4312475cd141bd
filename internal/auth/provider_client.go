package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultProviderTimeout = 10 * time.Second

var (
	ErrInvalidProviderConfig = errors.New("auth: invalid identity provider config")
	ErrProviderUnavailable   = errors.New("auth: identity provider unavailable")
	ErrUserNotFound          = errors.New("auth: user not found at identity provider")

	errMissingProviderBaseURL = errors.New("base url configuration required")
	errMissingProviderAPIKey  = errors.New("api key configuration required")
	errMissingProviderUserID  = errors.New("user id must not be empty")
)

// ProviderUser is the profile record held by the external identity provider.
type ProviderUser struct {
	ID             string   `json:"id"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	EmailAddresses []string `json:"email_addresses"`
}

// PrimaryEmail returns the first email address on file, or empty.
func (u ProviderUser) PrimaryEmail() string {
	if len(u.EmailAddresses) == 0 {
		return ""
	}
	return strings.TrimSpace(u.EmailAddresses[0])
}

// ProviderClientConfig bundles configuration for the identity provider API client.
type ProviderClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// ProviderClient performs authenticated calls against the identity
// provider's management API: profile reads for onboarding sync and
// metadata writes for onboarding completion.
type ProviderClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProviderClient constructs a client with validated configuration.
func NewProviderClient(cfg ProviderClientConfig) (*ProviderClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errMissingProviderBaseURL)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errMissingProviderAPIKey)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultProviderTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProviderClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// CurrentUser fetches the provider's profile record for the given user id.
func (c *ProviderClient) CurrentUser(ctx context.Context, userID string) (ProviderUser, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ProviderUser{}, errMissingProviderUserID
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s", c.baseURL, url.PathEscape(userID))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return ProviderUser{}, err
	}
	c.authorize(request)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return ProviderUser{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ProviderUser{}, ErrUserNotFound
	default:
		c.drain(response.Body)
		return ProviderUser{}, fmt.Errorf("%w: unexpected status %d", ErrProviderUnavailable, response.StatusCode)
	}

	var user ProviderUser
	if err := json.NewDecoder(response.Body).Decode(&user); err != nil {
		return ProviderUser{}, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	if strings.TrimSpace(user.ID) == "" {
		user.ID = userID
	}
	return user, nil
}

type updateMetadataPayload struct {
	PublicMetadata SessionMetadata `json:"public_metadata"`
}

// UpdateUserMetadata writes the user's public metadata back to the provider.
func (c *ProviderClient) UpdateUserMetadata(ctx context.Context, userID string, metadata SessionMetadata) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errMissingProviderUserID
	}

	body, err := json.Marshal(updateMetadataPayload{PublicMetadata: metadata})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/metadata", c.baseURL, url.PathEscape(userID))
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	c.authorize(request)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer response.Body.Close()
	c.drain(response.Body)

	switch response.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrUserNotFound
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrProviderUnavailable, response.StatusCode)
	}
}

func (c *ProviderClient) authorize(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *ProviderClient) drain(body io.Reader) {
	if _, err := io.Copy(io.Discard, io.LimitReader(body, 4096)); err != nil {
		c.logger.Debug("failed to drain provider response body", zap.Error(err))
	}
}
