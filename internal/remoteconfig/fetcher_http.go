package remoteconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/util"
)

// ParametersResponse is the body served by GET /parameters
type ParametersResponse struct {
	Parameters map[string]string `json:"parameters"`
}

// HTTPConfig configures an HTTPFetcher
type HTTPConfig struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit time.Duration
	Burst     int
}

// HTTPFetcher reads parameters from a catalog server's /parameters endpoint
type HTTPFetcher struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *util.RateLimiter
	log        *logger.Logger
}

// NewHTTPFetcher creates a fetcher for cfg.BaseURL
func NewHTTPFetcher(cfg HTTPConfig, log *logger.Logger) (*HTTPFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http fetcher: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("http fetcher: invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if log == nil {
		log = logger.Get()
	}
	log = log.Component("http_fetcher")
	return &HTTPFetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    util.NewRateLimiter(cfg.RateLimit, cfg.Burst).WithLogger(log),
		log:        log,
	}, nil
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, keys []string) (map[string]string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := f.baseURL + "/parameters"
	if len(keys) > 0 {
		endpoint += "?" + url.Values{"keys": {strings.Join(keys, ",")}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	f.log.Debug("Fetching parameters", map[string]interface{}{
		"url":  endpoint,
		"keys": keys,
	})

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := f.limiter.OnRateLimit(util.ParseRetryAfter(resp.Header))
		return nil, fmt.Errorf("%w: retry after %s", util.ErrRateLimited, wait)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result ParametersResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := result.Parameters[k]; ok {
			values[k] = v
		}
	}
	return values, nil
}
