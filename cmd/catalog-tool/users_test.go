package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/drallgood/book-catalog/internal/models"
)

type usersBackend struct {
	mu    sync.Mutex
	users map[int64]models.User
	next  int64
}

func (b *usersBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	rest := strings.TrimPrefix(r.URL.Path, "/users")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			list := []models.User{}
			for id := int64(1); id < b.next; id++ {
				if u, ok := b.users[id]; ok {
					list = append(list, u)
				}
			}
			_ = json.NewEncoder(w).Encode(list)
		case http.MethodPost:
			var u models.User
			_ = json.NewDecoder(r.Body).Decode(&u)
			u.ID = b.next
			b.next++
			b.users[u.ID] = u
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(u)
		}
		return
	}

	id, _ := strconv.ParseInt(strings.TrimPrefix(rest, "/"), 10, 64)
	u, ok := b.users[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(u)
	case http.MethodDelete:
		delete(b.users, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestUsersCommands(t *testing.T) {
	backend := &usersBackend{
		users: map[int64]models.User{1: {ID: 1, Name: "Ada", Email: "ada@example.com"}},
		next:  2,
	}
	api := httptest.NewServer(backend)
	defer api.Close()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "users:\n  base_url: "+api.URL+"\n")
	base := []string{"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env"), "users"}
	run := func(args ...string) (string, string, error) {
		return runTool(t, append(append([]string{}, base...), args...)...)
	}

	out, _, err := run("list")
	require.NoError(t, err)
	assert.Equal(t, "1\tAda\tada@example.com\t\n", out)

	out, _, err = run("create", "--name", "Grace", "--email", "grace@example.com", "--phone", "555")
	require.NoError(t, err)
	assert.Equal(t, "2\tGrace\tgrace@example.com\t555\n", out)

	out, _, err = run("get", "2")
	require.NoError(t, err)
	assert.Equal(t, "2\tGrace\tgrace@example.com\t555\n", out)

	out, _, err = run("delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted user 1\n", out)

	out, _, err = run("list")
	require.NoError(t, err)
	assert.Equal(t, "2\tGrace\tgrace@example.com\t555\n", out)

	_, _, err = run("get", "1")
	assert.Error(t, err)
}

func TestUsersCommands_Errors(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "missing.env")

	t.Run("invalid email is rejected before sending", func(t *testing.T) {
		cfgPath := writeFile(t, dir, "config.yaml", "users:\n  base_url: http://users.invalid\n")
		_, errOut, err := runTool(t, "--config", cfgPath, "--env-file", envFile,
			"users", "create", "--name", "Bob", "--email", "not-an-email")
		var exit cli.ExitCoder
		require.ErrorAs(t, err, &exit)
		assert.Equal(t, 2, exit.ExitCode())
		assert.Contains(t, errOut, "email")
	})

	t.Run("bad id", func(t *testing.T) {
		_, _, err := runTool(t, "--env-file", envFile, "users", "get", "abc")
		var exit cli.ExitCoder
		require.ErrorAs(t, err, &exit)
	})

	t.Run("no base url", func(t *testing.T) {
		t.Setenv("USERS_API_URL", "")
		_, _, err := runTool(t, "--env-file", envFile, "users", "list")
		assert.ErrorContains(t, err, "users API URL is not configured")
	})
}
