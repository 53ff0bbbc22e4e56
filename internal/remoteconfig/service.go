package remoteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
	"github.com/drallgood/book-catalog/internal/validation"
)

// DefaultFetchTimeout bounds a single fetch when Options.FetchTimeout is zero
const DefaultFetchTimeout = 10 * time.Second

// Options configures a Service
type Options struct {
	// DevMode disables the fetch throttle
	DevMode bool
	// MinimumFetchInterval overrides the production interval when positive
	MinimumFetchInterval time.Duration
	FetchTimeout         time.Duration
	Logger               *logger.Logger
	Validator            *validation.Validator
}

// Status describes the pipeline for health reporting
type Status struct {
	Initialized bool      `json:"initialized"`
	Disposed    bool      `json:"disposed"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Generation  uint64    `json:"generation"`
}

// Service turns raw remote values into validated content snapshots.
// Initialize and Refresh never return errors and reads never fail:
// anything unusable degrades to the empty document.
type Service struct {
	source    Source
	opts      Options
	log       *logger.Logger
	validator *validation.Validator

	// held for the whole of Initialize so concurrent callers wait for it
	initMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	disposed    bool
	lastAttempt time.Time
	lastSuccess time.Time
	lastErr     error
}

// NewService creates a pipeline reading from source
func NewService(source Source, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	v := opts.Validator
	if v == nil {
		v = validation.New()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &Service{
		source:    source,
		opts:      opts,
		log:       log.Component("remote_config"),
		validator: v,
	}
}

// DefaultValues returns the in-app defaults for the content keys
func DefaultValues() map[string]string {
	snapshot, _ := json.Marshal(models.EmptySnapshot())
	carousel, _ := json.Marshal(models.EmptyCarouselData())
	return map[string]string{
		models.KeyJSONData:        string(snapshot),
		models.KeyDetailsCarousel: string(carousel),
	}
}

func (s *Service) minimumFetchInterval() time.Duration {
	if s.opts.DevMode {
		return DevMinimumFetchInterval
	}
	if s.opts.MinimumFetchInterval > 0 {
		return s.opts.MinimumFetchInterval
	}
	return ProductionMinimumFetchInterval
}

// Initialize sets defaults and the fetch interval, then fetches and
// activates once. Only the first call does any work; failures are logged
// and the service still counts as initialized.
func (s *Service) Initialize(ctx context.Context) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.RLock()
	done := s.initialized || s.disposed
	s.mu.RUnlock()
	if done {
		return
	}

	err := s.initialize(ctx)

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Error initializing remote config", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.log.Info("Remote config initialized", map[string]interface{}{
		"dev_mode":               s.opts.DevMode,
		"minimum_fetch_interval": s.minimumFetchInterval().String(),
	})
}

func (s *Service) initialize(ctx context.Context) error {
	if err := s.source.SetDefaults(DefaultValues()); err != nil {
		return err
	}
	if err := s.source.SetConfigSettings(Settings{MinimumFetchInterval: s.minimumFetchInterval()}); err != nil {
		return err
	}
	return s.fetch(ctx, false)
}

// Refresh fetches and activates outside the minimum fetch interval when
// the source supports it. Errors are logged, never returned.
func (s *Service) Refresh(ctx context.Context) {
	s.mu.RLock()
	initialized, disposed := s.initialized, s.disposed
	s.mu.RUnlock()

	if disposed {
		return
	}
	if !initialized {
		s.Initialize(ctx)
		return
	}

	if err := s.fetch(ctx, true); err != nil {
		s.log.Error("Error refreshing remote config", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Service) fetch(ctx context.Context, force bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	s.mu.Lock()
	s.lastAttempt = time.Now()
	s.mu.Unlock()

	var (
		changed bool
		err     error
	)
	if ff, ok := s.source.(ForceFetcher); ok && force {
		changed, err = ff.ForceFetchAndActivate(ctx)
	} else {
		changed, err = s.source.FetchAndActivate(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return err
	}
	s.lastSuccess = time.Now()
	s.log.Debug("Fetch complete", map[string]interface{}{
		"changed": changed,
		"force":   force,
	})
	return nil
}

// JSONData returns the validated json_data snapshot, or the empty
// snapshot when the value is missing or invalid
func (s *Service) JSONData() models.ConfigSnapshot {
	raw := s.source.GetValue(models.KeyJSONData)
	snapshot, err := models.DecodeSnapshot(raw.AsString(), s.validator)
	if err != nil {
		s.logDocumentError(models.KeyJSONData, raw, err)
		return models.EmptySnapshot()
	}
	return snapshot
}

// DetailsCarousel returns the validated details_carousel data, or
// {books: []} when the value is missing or invalid
func (s *Service) DetailsCarousel() models.CarouselData {
	raw := s.source.GetValue(models.KeyDetailsCarousel)
	data, err := models.DecodeCarouselData(raw.AsString(), s.validator)
	if err != nil {
		s.logDocumentError(models.KeyDetailsCarousel, raw, err)
		return models.EmptyCarouselData()
	}
	return data
}

func (s *Service) logDocumentError(key string, raw Value, err error) {
	fields := map[string]interface{}{
		"key":    key,
		"source": raw.Source().String(),
		"error":  err.Error(),
	}
	var docErr *models.DocumentError
	if errors.As(err, &docErr) {
		fields["stage"] = docErr.Stage
	}
	if invalid, ok := validation.Fields(err); ok {
		fields["fields"] = invalid
	}
	s.log.Error("Error getting "+key, fields)
}

// Dispose ends the service lifecycle. Reads keep returning the last
// activated values.
func (s *Service) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	if d, ok := s.source.(interface{ Dispose() error }); ok {
		if err := d.Dispose(); err != nil {
			s.log.Warn("Error disposing remote config source", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// Status reports the current pipeline state
func (s *Service) Status() Status {
	s.mu.RLock()
	st := Status{
		Initialized: s.initialized,
		Disposed:    s.disposed,
		LastAttempt: s.lastAttempt,
		LastSuccess: s.lastSuccess,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.RUnlock()

	if c, ok := s.source.(interface{ Status() ClientStatus }); ok {
		st.Generation = c.Status().Generation
	}
	return st
}
