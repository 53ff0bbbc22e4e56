package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
	"github.com/drallgood/book-catalog/internal/util"
	"github.com/drallgood/book-catalog/internal/validation"
)

// fakeAPI is an in-memory users API
type fakeAPI struct {
	mu     sync.Mutex
	users  map[int64]models.User
	nextID int64
	gets   atomic.Int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users:  map[int64]models.User{1: {ID: 1, Name: "Ada", Email: "ada@example.com"}},
		nextID: 2,
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	rest := strings.TrimPrefix(r.URL.Path, "/users")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			list := make([]models.User, 0, len(f.users))
			for id := int64(1); id < f.nextID; id++ {
				if u, ok := f.users[id]; ok {
					list = append(list, u)
				}
			}
			_ = json.NewEncoder(w).Encode(list)
		case http.MethodPost:
			var u models.User
			_ = json.NewDecoder(r.Body).Decode(&u)
			u.ID = f.nextID
			f.nextID++
			f.users[u.ID] = u
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(u)
		}
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(rest, "/"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	u, ok := f.users[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		f.gets.Add(1)
		_ = json.NewEncoder(w).Encode(u)
	case http.MethodPut:
		var next models.User
		_ = json.NewDecoder(r.Body).Decode(&next)
		next.ID = id
		f.users[id] = next
		_ = json.NewEncoder(w).Encode(next)
	case http.MethodDelete:
		delete(f.users, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", RateLimit: time.Millisecond, Burst: 100}, logger.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "  "}, logger.Nop())
	assert.Error(t, err)
}

func TestClient_CRUD(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	c := newTestClient(t, api)

	users, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ada", users[0].Name)

	created, err := c.Create(ctx, models.User{Name: "Grace", Email: "grace@example.com", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)

	got, err := c.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := c.Update(ctx, 2, models.User{Name: "Grace H", Email: "grace@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Grace H", updated.Name)

	require.NoError(t, c.Delete(ctx, 2))
	_, err = c.Get(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_GetIsCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	c := newTestClient(t, api)

	for i := 0; i < 3; i++ {
		u, err := c.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.Name)
	}
	assert.Equal(t, int32(1), api.gets.Load())

	_, err := c.Update(ctx, 1, models.User{Name: "Ada L", Email: "ada@example.com"})
	require.NoError(t, err)

	u, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ada L", u.Name)
	assert.Equal(t, int32(2), api.gets.Load())
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.Create(context.Background(), models.User{Name: "x", Email: "not-an-email"})
	require.Error(t, err)
	fields, ok := validation.Fields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "email")

	_, err = c.Update(context.Background(), 1, models.User{Email: "a@b.co"})
	assert.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{name: "server error", status: http.StatusInternalServerError, check: func(t *testing.T, err error) {
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, http.StatusInternalServerError, se.Code)
			assert.Equal(t, "boom", se.Body)
		}},
		{name: "rate limited", status: http.StatusTooManyRequests, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, util.ErrRateLimited)
		}},
		{name: "not found", status: http.StatusNotFound, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotFound)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("boom"))
			}))
			_, err := c.List(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_BadJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	_, err := c.List(context.Background())
	assert.ErrorContains(t, err, "failed to decode response")
}
