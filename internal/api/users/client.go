// Package users is a client for the users REST API
package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/drallgood/book-catalog/internal/cache"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
	"github.com/drallgood/book-catalog/internal/util"
	"github.com/drallgood/book-catalog/internal/validation"
)

const usersPath = "/users"

// Defaults used when Config leaves a field zero
const (
	DefaultTimeout  = 30 * time.Second
	DefaultCacheTTL = 30 * time.Second
)

// ErrNotFound is returned when the API answers 404 for a user
var ErrNotFound = errors.New("user not found")

// StatusError is returned for unexpected response codes
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code: %d", e.Method, e.Path, e.Code)
}

// Config configures a Client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	RateLimit time.Duration
	Burst     int
}

// Client talks to the users API
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *util.RateLimiter
	cache     cache.Cache[int64, models.User]
	cacheTTL  time.Duration
	validator *validation.Validator
	logger    *logger.Logger
}

// NewClient creates a users client
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("users API base URL is required")
	}
	if log == nil {
		log = logger.Get()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = util.DefaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = util.DefaultBurst
	}

	log = log.Component("users_client")
	return &Client{
		baseURL:   base,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   util.NewRateLimiter(cfg.RateLimit, cfg.Burst).WithLogger(log),
		cache:     cache.NewMemoryCache[int64, models.User](log),
		cacheTTL:  cfg.CacheTTL,
		validator: validation.New(),
		logger:    log,
	}, nil
}

// List returns all users
func (c *Client) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, usersPath, nil, &users); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Get returns one user, served from cache while fresh
func (c *Client) Get(ctx context.Context, id int64) (models.User, error) {
	user, err := cache.GetOrLoad(c.cache, id, c.cacheTTL, func() (models.User, error) {
		var u models.User
		err := c.do(ctx, http.MethodGet, userPath(id), nil, &u)
		return u, err
	})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// Create validates and creates a user, returning the stored record
func (c *Client) Create(ctx context.Context, user models.User) (models.User, error) {
	if err := c.validator.Validate(user); err != nil {
		return models.User{}, fmt.Errorf("invalid user: %w", err)
	}
	var created models.User
	if err := c.do(ctx, http.MethodPost, usersPath, user, &created); err != nil {
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// Update validates and replaces a user
func (c *Client) Update(ctx context.Context, id int64, user models.User) (models.User, error) {
	if err := c.validator.Validate(user); err != nil {
		return models.User{}, fmt.Errorf("invalid user: %w", err)
	}
	c.cache.Delete(id)

	var updated models.User
	if err := c.do(ctx, http.MethodPut, userPath(id), user, &updated); err != nil {
		return models.User{}, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes a user
func (c *Client) Delete(ctx context.Context, id int64) error {
	c.cache.Delete(id)
	if err := c.do(ctx, http.MethodDelete, userPath(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return nil
}

func userPath(id int64) string {
	return usersPath + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	log := c.logger.WithFields(map[string]interface{}{
		"method":   method,
		"endpoint": path,
	})

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("Request failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		c.limiter.OnRateLimit(util.ParseRetryAfter(resp.Header))
		return fmt.Errorf("%s %s: %w", method, path, util.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		log.Error("Unexpected status code", map[string]interface{}{
			"status":   resp.StatusCode,
			"response": string(data),
		})
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	log.Debug("Request complete", map[string]interface{}{"status": resp.StatusCode})
	return nil
}
