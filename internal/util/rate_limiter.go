package util

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/drallgood/book-catalog/internal/logger"
)

var (
	// ErrRateLimited is returned when a backend answers 429 Too Many Requests
	ErrRateLimited = errors.New("rate limited")
	// DefaultRate is the default minimum time between requests
	DefaultRate = 200 * time.Millisecond
	// DefaultBurst is the default burst size
	DefaultBurst = 5
	// MaxRate caps the backoff applied by OnRateLimit
	MaxRate = 5 * time.Second
)

// RateLimiter is a token bucket whose refill interval backs off when the
// remote side reports rate limiting
type RateLimiter struct {
	mu           sync.Mutex
	now          func() time.Time
	log          *logger.Logger
	last         time.Time
	rate         time.Duration
	tokens       int
	maxTokens    int
	lastRateDrop time.Time
}

// NewRateLimiter creates a limiter allowing one request per rate with
// bursts of up to burst requests. Non-positive values use the defaults.
func NewRateLimiter(rate time.Duration, burst int) *RateLimiter {
	if rate <= 0 {
		rate = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	now := time.Now()
	return &RateLimiter{
		now:          time.Now,
		log:          logger.Get().Component("rate_limiter"),
		last:         now,
		rate:         rate,
		tokens:       burst,
		maxTokens:    burst,
		lastRateDrop: now,
	}
}

// WithLogger replaces the limiter's logger and returns the limiter
func (r *RateLimiter) WithLogger(log *logger.Logger) *RateLimiter {
	if log != nil {
		r.mu.Lock()
		r.log = log
		r.mu.Unlock()
	}
	return r
}

func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.last)
	if n := int(elapsed / r.rate); n > 0 {
		r.tokens += n
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.last = r.last.Add(time.Duration(n) * r.rate)
	}
}

// Wait blocks until a token is available or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.refill(now)
		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		wait := r.last.Add(r.rate).Sub(now)
		r.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the number of tokens that can be taken without waiting
func (r *RateLimiter) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(r.now())
	return r.tokens
}

// OnRateLimit slows the limiter down after a 429 and returns how long the
// caller should wait before retrying
func (r *RateLimiter) OnRateLimit(retryAfter time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	factor := 1.2
	if now.Sub(r.lastRateDrop) < 5*time.Minute {
		factor = 1.5
	}
	r.rate = time.Duration(factor * float64(r.rate))
	if r.rate > MaxRate {
		r.rate = MaxRate
	}
	r.lastRateDrop = now

	r.log.Warn("Rate limited, increasing delay between requests", map[string]interface{}{
		"new_rate":    r.rate.String(),
		"retry_after": retryAfter.String(),
	})

	if retryAfter > r.rate {
		return retryAfter
	}
	return r.rate
}

// GetRate returns the current refill interval
func (r *RateLimiter) GetRate() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}

// ParseRetryAfter reads a Retry-After header given either in seconds or
// as an HTTP date. It returns 0 when the header is absent or unparseable.
func ParseRetryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
