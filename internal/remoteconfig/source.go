// Package remoteconfig fetches content documents from a remote key-value
// store and exposes them as validated snapshots that never fail to read.
package remoteconfig

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDisposed is returned by a client or service after Dispose
	ErrDisposed = errors.New("remote config disposed")
	// ErrNoFetcher is returned when a client has no backend configured
	ErrNoFetcher = errors.New("remote config: no fetcher configured")
	// ErrThrottled means the minimum fetch interval has not elapsed
	ErrThrottled = errors.New("remote config: fetch throttled")
)

// Minimum fetch intervals used when none is configured explicitly
const (
	DevMinimumFetchInterval        = 0
	ProductionMinimumFetchInterval = time.Hour
)

// ValueSource tells where a value returned by GetValue came from
type ValueSource int

const (
	// SourceStatic means the key has neither a default nor a remote value
	SourceStatic ValueSource = iota
	// SourceDefault means the value comes from SetDefaults
	SourceDefault
	// SourceRemote means the value comes from the last activated fetch
	SourceRemote
)

func (s ValueSource) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceRemote:
		return "remote"
	default:
		return "static"
	}
}

// Value is a single configuration value
type Value struct {
	raw    string
	source ValueSource
}

// NewValue builds a value; used by Source implementations
func NewValue(raw string, source ValueSource) Value {
	return Value{raw: raw, source: source}
}

// AsString returns the raw string value
func (v Value) AsString() string { return v.raw }

// Source returns where the value came from
func (v Value) Source() ValueSource { return v.source }

// Settings configures fetch behaviour
type Settings struct {
	// MinimumFetchInterval is the minimum age of the last successful fetch
	// before FetchAndActivate contacts the backend again
	MinimumFetchInterval time.Duration
}

// Source is the remote key-value contract the pipeline depends on
type Source interface {
	SetDefaults(defaults map[string]string) error
	SetConfigSettings(settings Settings) error
	FetchAndActivate(ctx context.Context) (bool, error)
	GetValue(key string) Value
}

// ForceFetcher is implemented by sources that can fetch outside the
// minimum fetch interval
type ForceFetcher interface {
	ForceFetchAndActivate(ctx context.Context) (bool, error)
}

// Fetcher retrieves raw values for the given keys from a backend.
// Keys missing remotely are omitted from the result.
type Fetcher interface {
	Fetch(ctx context.Context, keys []string) (map[string]string, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, keys []string) (map[string]string, error)

// Fetch calls f(ctx, keys)
func (f FetcherFunc) Fetch(ctx context.Context, keys []string) (map[string]string, error) {
	return f(ctx, keys)
}
