package remoteconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/drallgood/book-catalog/internal/logger"
)

// ClientStatus is a point-in-time view of a Client
type ClientStatus struct {
	LastFetch  time.Time
	LastError  error
	Generation uint64
	Keys       []string
}

// Client implements Source on top of a Fetcher backend. It keeps defaults,
// the last activated values and the fetch throttle.
type Client struct {
	fetcher Fetcher
	log     *logger.Logger
	now     func() time.Time
	group   singleflight.Group

	// generation numbers handed to fetches, in start order
	nextGen atomic.Uint64

	mu        sync.RWMutex
	defaults  map[string]string
	extraKeys []string
	active    map[string]string
	settings  Settings
	lastFetch time.Time
	lastErr   error
	activeGen uint64
	disposed  bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger sets the client logger
func WithLogger(log *logger.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock overrides the time source used by the fetch throttle
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithKeys adds keys to fetch in addition to the keys that have defaults
func WithKeys(keys ...string) ClientOption {
	return func(c *Client) {
		c.extraKeys = append(c.extraKeys, keys...)
	}
}

// NewClient creates a client reading from fetcher
func NewClient(fetcher Fetcher, opts ...ClientOption) *Client {
	c := &Client{
		fetcher:  fetcher,
		log:      logger.Get(),
		now:      time.Now,
		defaults: make(map[string]string),
		active:   make(map[string]string),
		settings: Settings{MinimumFetchInterval: ProductionMinimumFetchInterval},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Component("remote_config_client")
	return c
}

// SetDefaults replaces the in-app default values
func (c *Client) SetDefaults(defaults map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.defaults = maps.Clone(defaults)
	if c.defaults == nil {
		c.defaults = make(map[string]string)
	}
	return nil
}

// SetConfigSettings updates the fetch throttle
func (c *Client) SetConfigSettings(settings Settings) error {
	if settings.MinimumFetchInterval < 0 {
		return fmt.Errorf("minimum fetch interval must not be negative: %s", settings.MinimumFetchInterval)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.settings = settings
	return nil
}

// GetValue returns the activated remote value for key, falling back to
// the default and then to an empty static value
func (c *Client) GetValue(key string) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.active[key]; ok {
		return NewValue(v, SourceRemote)
	}
	if v, ok := c.defaults[key]; ok {
		return NewValue(v, SourceDefault)
	}
	return NewValue("", SourceStatic)
}

// FetchAndActivate fetches values unless the last successful fetch is
// younger than the minimum fetch interval. It reports whether the active
// values changed.
func (c *Client) FetchAndActivate(ctx context.Context) (bool, error) {
	return c.fetchAndActivate(ctx, false)
}

// ForceFetchAndActivate fetches regardless of the minimum fetch interval
func (c *Client) ForceFetchAndActivate(ctx context.Context) (bool, error) {
	return c.fetchAndActivate(ctx, true)
}

func (c *Client) fetchAndActivate(ctx context.Context, force bool) (bool, error) {
	c.mu.RLock()
	disposed := c.disposed
	interval := c.settings.MinimumFetchInterval
	last := c.lastFetch
	c.mu.RUnlock()

	if disposed {
		return false, ErrDisposed
	}
	if c.fetcher == nil {
		return false, ErrNoFetcher
	}

	if !force {
		if err := c.checkThrottle(last, interval); errors.Is(err, ErrThrottled) {
			c.log.Debug("Skipping fetch, minimum fetch interval not elapsed", map[string]interface{}{
				"last_fetch": last,
				"interval":   interval.String(),
			})
			return false, nil
		}
	}

	key := "fetch"
	if force {
		key = "force"
	}
	res, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.fetchOnce(ctx)
	})
	if shared {
		c.log.Debug("Joined in-flight fetch", map[string]interface{}{"force": force})
	}
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (c *Client) checkThrottle(last time.Time, interval time.Duration) error {
	if last.IsZero() {
		return nil
	}
	if c.now().Sub(last) < interval {
		return ErrThrottled
	}
	return nil
}

func (c *Client) fetchOnce(ctx context.Context) (bool, error) {
	gen := c.nextGen.Add(1)
	keys := c.trackedKeys()

	values, err := c.fetcher.Fetch(ctx, keys)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return false, ErrDisposed
	}

	if gen < c.activeGen {
		// a fetch that started later has already been activated
		c.log.Warn("Discarding stale fetch result", map[string]interface{}{
			"generation":        gen,
			"active_generation": c.activeGen,
			"error":             errString(err),
		})
		return false, nil
	}

	if err != nil {
		c.lastErr = err
		return false, fmt.Errorf("fetch remote config: %w", err)
	}

	next := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			next[k] = v
		}
	}

	changed := !maps.Equal(c.active, next)
	c.active = next
	c.activeGen = gen
	c.lastFetch = c.now()
	c.lastErr = nil

	c.log.Info("Activated remote config", map[string]interface{}{
		"generation": gen,
		"keys":       len(next),
		"changed":    changed,
	})
	return changed, nil
}

func (c *Client) trackedKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{}, len(c.defaults)+len(c.extraKeys))
	keys := make([]string, 0, len(seen))
	for k := range c.defaults {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for _, k := range c.extraKeys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Status returns the current fetch status
func (c *Client) Status() ClientStatus {
	keys := c.trackedKeys()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ClientStatus{
		LastFetch:  c.lastFetch,
		LastError:  c.lastErr,
		Generation: c.activeGen,
		Keys:       keys,
	}
}

// Dispose stops the client; the fetcher is closed when it implements io.Closer
func (c *Client) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	if closer, ok := c.fetcher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close fetcher: %w", err)
		}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
