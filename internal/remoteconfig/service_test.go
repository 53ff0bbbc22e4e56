package remoteconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
)

const endToEndPayload = `{"books":[{"id":1,"name":"A","author":"B","summary":"","genre":"Fiction","cover_url":"","views":"0","likes":"0","quotes":"0"}],"top_banner_slides":[],"you_will_like_section":[]}`

// syncBuffer is a goroutine-safe log sink
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestService(t *testing.T, f Fetcher, opts Options) (*Service, *Client, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	log := logger.New(logger.Config{Level: "debug", Format: logger.FormatJSON, Output: out})
	client := NewClient(f, WithLogger(log))
	opts.Logger = log
	svc := NewService(client, opts)
	t.Cleanup(svc.Dispose)
	return svc, client, out
}

// recordingSource captures what the service configures
type recordingSource struct {
	mu       sync.Mutex
	defaults map[string]string
	settings Settings
	fetches  int
	fetchErr error
	values   map[string]string
}

func (s *recordingSource) SetDefaults(d map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
	return nil
}

func (s *recordingSource) SetConfigSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *recordingSource) FetchAndActivate(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.fetchErr == nil, s.fetchErr
}

func (s *recordingSource) GetValue(key string) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return NewValue(v, SourceRemote)
	}
	if v, ok := s.defaults[key]; ok {
		return NewValue(v, SourceDefault)
	}
	return NewValue("", SourceStatic)
}

func TestService_EndToEnd(t *testing.T) {
	f := &mapFetcher{values: map[string]string{models.KeyJSONData: endToEndPayload}}
	svc, _, out := newTestService(t, f, Options{DevMode: true})

	svc.Initialize(context.Background())

	snapshot := svc.JSONData()
	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, endToEndPayload, string(encoded))
	assert.NotContains(t, out.String(), `"level":"error"`)

	f.set(map[string]string{models.KeyJSONData: `{"books":[{"id":1}]}`}, nil)
	svc.Refresh(context.Background())

	assert.Equal(t, models.EmptySnapshot(), svc.JSONData())
	assert.Contains(t, out.String(), "Error getting json_data")
	assert.Contains(t, out.String(), "books[0].name")
}

func TestService_FallbackTotality(t *testing.T) {
	inputs := map[string]string{
		"empty":            "",
		"not json":         "{{{{",
		"json string":      `"books"`,
		"number":           `42`,
		"missing field":    `{"books":[{"id":1,"name":"A","author":"B","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`,
		"negative id":      `{"books":[{"id":-5,"name":"A","author":"B","summary":"","genre":"G","cover_url":"","views":"","likes":"","quotes":""}]}`,
		"wrong type":       `{"books":"none"}`,
		"bad slide":        `{"top_banner_slides":[{"id":"x"}]}`,
		"bad id list":      `{"you_will_like_section":["1"]}`,
		"negative slide":   `{"top_banner_slides":[{"id":-1,"book_id":1,"cover":""}]}`,
		"bad second entry": `{"books":[` + bookJSON(1) + `,{"id":2}]}`,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			src := &recordingSource{values: map[string]string{models.KeyJSONData: raw}}
			out := &syncBuffer{}
			svc := NewService(src, Options{Logger: logger.New(logger.Config{Level: "debug", Output: out})})

			var snapshot models.ConfigSnapshot
			require.NotPanics(t, func() { snapshot = svc.JSONData() })
			assert.Equal(t, models.EmptySnapshot(), snapshot)
			assert.Contains(t, out.String(), `"level":"error"`)
		})
	}
}

func bookJSON(id int) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id": id, "name": "Book", "author": "Author", "summary": "", "genre": "Fiction",
		"cover_url": "", "views": "1", "likes": "2", "quotes": "3",
	})
	return string(b)
}

func TestService_ReadsBeforeInitialize(t *testing.T) {
	src := &recordingSource{}
	svc := NewService(src, Options{Logger: logger.Nop()})

	assert.Equal(t, models.EmptySnapshot(), svc.JSONData())
	assert.Equal(t, models.EmptyCarouselData(), svc.DetailsCarousel())
}

func TestService_DefaultsAreValidDocuments(t *testing.T) {
	src := &recordingSource{}
	out := &syncBuffer{}
	svc := NewService(src, Options{Logger: logger.New(logger.Config{Level: "debug", Output: out})})

	svc.Initialize(context.Background())

	require.Contains(t, src.defaults, models.KeyJSONData)
	require.Contains(t, src.defaults, models.KeyDetailsCarousel)

	out.Reset()
	assert.Equal(t, models.EmptySnapshot(), svc.JSONData())
	assert.Equal(t, models.EmptyCarouselData(), svc.DetailsCarousel())
	assert.NotContains(t, out.String(), `"level":"error"`, "defaults must parse without errors")
}

func TestService_FetchInterval(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want time.Duration
	}{
		{name: "dev mode", opts: Options{DevMode: true, MinimumFetchInterval: time.Minute}, want: 0},
		{name: "production", opts: Options{}, want: time.Hour},
		{name: "override", opts: Options{MinimumFetchInterval: 5 * time.Minute}, want: 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &recordingSource{}
			tt.opts.Logger = logger.Nop()
			NewService(src, tt.opts).Initialize(context.Background())
			assert.Equal(t, tt.want, src.settings.MinimumFetchInterval)
		})
	}
}

func TestService_InitializeIsIdempotent(t *testing.T) {
	src := &recordingSource{}
	svc := NewService(src, Options{Logger: logger.Nop()})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Initialize(context.Background())
		}()
	}
	wg.Wait()
	svc.Initialize(context.Background())

	assert.Equal(t, 1, src.fetches)
	assert.True(t, svc.Status().Initialized)
}

func TestService_InitializeFailureIsSwallowed(t *testing.T) {
	src := &recordingSource{fetchErr: errors.New("network down")}
	out := &syncBuffer{}
	svc := NewService(src, Options{Logger: logger.New(logger.Config{Level: "debug", Output: out})})

	require.NotPanics(t, func() { svc.Initialize(context.Background()) })

	st := svc.Status()
	assert.True(t, st.Initialized)
	assert.Equal(t, "network down", st.LastError)
	assert.Contains(t, out.String(), "Error initializing remote config")

	// a second call does not retry
	svc.Initialize(context.Background())
	assert.Equal(t, 1, src.fetches)
	assert.Equal(t, models.EmptySnapshot(), svc.JSONData())
}

func TestService_RefreshBypassesThrottle(t *testing.T) {
	f := &mapFetcher{values: map[string]string{models.KeyJSONData: `{"books":[` + bookJSON(1) + `]}`}}
	svc, _, _ := newTestService(t, f, Options{MinimumFetchInterval: time.Hour})

	svc.Initialize(context.Background())
	assert.Equal(t, 1, f.callCount())
	require.Len(t, svc.JSONData().Books, 1)

	f.set(map[string]string{models.KeyJSONData: `{"books":[` + bookJSON(1) + `,` + bookJSON(2) + `]}`}, nil)
	svc.Refresh(context.Background())
	assert.Equal(t, 2, f.callCount())
	assert.Len(t, svc.JSONData().Books, 2)

	st := svc.Status()
	assert.Empty(t, st.LastError)
	assert.Equal(t, uint64(2), st.Generation)
	assert.False(t, st.LastSuccess.IsZero())
}

func TestService_RefreshWithoutForceFetcher(t *testing.T) {
	src := &recordingSource{}
	svc := NewService(src, Options{Logger: logger.Nop()})

	svc.Refresh(context.Background()) // initializes
	svc.Refresh(context.Background())
	assert.Equal(t, 2, src.fetches)
}

func TestService_RefreshErrorIsLogged(t *testing.T) {
	f := &mapFetcher{values: map[string]string{}}
	svc, _, out := newTestService(t, f, Options{DevMode: true})
	svc.Initialize(context.Background())

	f.set(nil, errors.New("503"))
	require.NotPanics(t, func() { svc.Refresh(context.Background()) })
	assert.Contains(t, out.String(), "Error refreshing remote config")
	assert.Contains(t, svc.Status().LastError, "503")
}

func TestService_DetailsCarousel(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		books int
	}{
		{name: "object", raw: `{"books":[` + bookJSON(3) + `]}`, books: 1},
		{name: "bare array", raw: `[` + bookJSON(3) + `,` + bookJSON(4) + `]`, books: 2},
		{name: "invalid element", raw: `{"books":[{"id":3}]}`, books: 0},
		{name: "garbage", raw: `oops`, books: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &recordingSource{values: map[string]string{models.KeyDetailsCarousel: tt.raw}}
			svc := NewService(src, Options{Logger: logger.Nop()})
			data := svc.DetailsCarousel()
			assert.NotNil(t, data.Books)
			assert.Len(t, data.Books, tt.books)
		})
	}
}

func TestService_Dispose(t *testing.T) {
	f := &mapFetcher{values: map[string]string{models.KeyJSONData: endToEndPayload}}
	svc, client, _ := newTestService(t, f, Options{DevMode: true})
	svc.Initialize(context.Background())

	svc.Dispose()
	svc.Dispose()

	f.set(map[string]string{models.KeyJSONData: `{}`}, nil)
	svc.Refresh(context.Background())
	assert.Equal(t, 1, f.callCount())
	assert.Len(t, svc.JSONData().Books, 1)
	assert.True(t, svc.Status().Disposed)

	_, err := client.FetchAndActivate(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
}
