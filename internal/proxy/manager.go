package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

var (
	// ErrProviderUnavailable indicates the proxy provider returned a
	// non-200 status or a malformed body.
	ErrProviderUnavailable = errors.New("proxy provider unavailable")

	// ErrEmptyPool indicates no proxies are available for selection.
	ErrEmptyPool = errors.New("no proxies available")

	// ErrMalformedProxy indicates a descriptor is missing a required field.
	ErrMalformedProxy = errors.New("malformed proxy descriptor")
)

// Descriptor is one egress proxy entry as returned by the provider.
type Descriptor struct {
	Address     string `json:"proxy_address"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	CountryCode string `json:"country_code"`
}

// BrowserConfig is the browser-launch proxy shape: a server URL plus
// credentials supplied out-of-band (CDP auth challenge).
type BrowserConfig struct {
	Server   string
	Username string
	Password string
}

// userAgents is the fixed rotation set for browser sessions.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

// Manager fetches and hands out egress proxies from a provider API.
type Manager struct {
	client *http.Client
	logger arbor.ILogger
}

// NewManager creates a proxy pool manager.
func NewManager(timeout time.Duration, logger arbor.ILogger) *Manager {
	return &Manager{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// providerResponse is the provider's list envelope. The "results" field is
// required; its absence marks the body malformed.
type providerResponse struct {
	Results *[]Descriptor `json:"results"`
}

// Fetch retrieves the proxy list from the provider. A non-200 status or a
// body without a "results" list fails with ErrProviderUnavailable. A
// network-level failure returns an empty pool and no error - the caller
// decides whether an empty pool is fatal.
func (m *Manager) Fetch(ctx context.Context, providerURL, apiKey string) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, providerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build proxy provider request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Proxy provider unreachable, continuing with empty pool")
		return []Descriptor{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read proxy provider response, continuing with empty pool")
		return []Descriptor{}, nil
	}

	var envelope providerResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if envelope.Results == nil {
		return nil, fmt.Errorf("%w: response missing results list", ErrProviderUnavailable)
	}

	m.logger.Info().Int("count", len(*envelope.Results)).Msg("Fetched proxy list")

	return *envelope.Results, nil
}

// SelectRandom picks one proxy at random from the pool.
func SelectRandom(pool []Descriptor) (Descriptor, error) {
	if len(pool) == 0 {
		return Descriptor{}, ErrEmptyPool
	}
	return pool[rand.Intn(len(pool))], nil
}

// ToBrowserConfig renders a descriptor into the browser-launch proxy shape.
func ToBrowserConfig(d Descriptor) (BrowserConfig, error) {
	if d.Address == "" || d.Port == 0 || d.Username == "" || d.Password == "" {
		return BrowserConfig{}, fmt.Errorf("%w: address=%q port=%d", ErrMalformedProxy, d.Address, d.Port)
	}
	return BrowserConfig{
		Server:   fmt.Sprintf("http://%s:%d", d.Address, d.Port),
		Username: d.Username,
		Password: d.Password,
	}, nil
}

// RandomUserAgent returns one of the fixed user agent rotation set.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Describe returns a credential-free representation for logging.
func Describe(d Descriptor) string {
	return fmt.Sprintf("%s:%d (%s)", d.Address, d.Port, d.CountryCode)
}
