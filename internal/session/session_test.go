package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/guard"
	"github.com/org/opsconsole/internal/live"
	"github.com/org/opsconsole/pkg/models"
)

// fakeBackend accepts alice/secret, rejects bob as inactive and serves
// /auth/me for the token "good".
func fakeBackend(t *testing.T) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch {
		case req.UserID == "bob":
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"detail":"inactive"}`)) //nolint:errcheck
		case req.UserID == "alice" && req.Password == "secret":
			json.NewEncoder(w).Encode(models.LoginResponse{ //nolint:errcheck
				Token: "good",
				User:  &models.User{UserID: "alice", PasswordChanged: false},
			})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Invalid credentials"}`)) //nolint:errcheck
		}
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(models.User{UserID: "alice", PasswordChanged: true}) //nolint:errcheck
	})
	mux.HandleFunc("POST /api/auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.ChangePasswordResponse{ //nolint:errcheck
			Message: "ok",
			User:    &models.User{UserID: "alice", PasswordChanged: true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := client.New(client.Config{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	return c
}

func TestLoginMapsAuthErrors(t *testing.T) {
	c := fakeBackend(t)
	ctx := context.Background()

	_, err := Login(ctx, c, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, "incorrect id/password", client.Message(err, "login failed"))

	_, err = Login(ctx, c, "bob", "whatever")
	assert.ErrorIs(t, err, ErrInactive)

	s, err := Login(ctx, c, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "good", s.Token)
	assert.Equal(t, guard.Authenticated, s.Phase())
}

func TestManagerLoginPersistsOnlyOnSuccess(t *testing.T) {
	store := &MemoryStore{}
	m := NewManager(fakeBackend(t), store)

	_, err := m.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	st, _ := store.Load()
	assert.Empty(t, st.Token)
	assert.Nil(t, m.User())

	_, err = m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	st, _ = store.Load()
	assert.Equal(t, "good", st.Token)
	assert.Equal(t, guard.Authenticated, m.Phase())
	assert.Equal(t, "good", m.Client().Token())
}

func TestManagerRestore(t *testing.T) {
	c := fakeBackend(t)

	m := NewManager(c, &MemoryStore{})
	assert.Equal(t, guard.Loading, m.Phase())
	_, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, guard.Unauthenticated, m.Phase())

	store := &MemoryStore{}
	require.NoError(t, store.Save(State{Token: "good", SidebarCollapsed: true}))
	m = NewManager(c, store)
	s, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", s.User.UserID)
	assert.True(t, m.SidebarCollapsed())

	require.NoError(t, store.Save(State{Token: "stale", SidebarCollapsed: true}))
	m = NewManager(c, store)
	_, err = m.Restore(context.Background())
	require.Error(t, err)
	assert.Equal(t, guard.Unauthenticated, m.Phase())
	st, _ := store.Load()
	assert.Empty(t, st.Token, "rejected token must be forgotten")
	assert.True(t, st.SidebarCollapsed, "other state survives")
}

func TestManagerExpireRunsHooks(t *testing.T) {
	store := &MemoryStore{}
	m := NewManager(fakeBackend(t), store)
	_, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	expired := 0
	m.OnExpire(func() { expired++ })

	assert.NoError(t, m.Check(nil))
	assert.Equal(t, 0, expired)

	err = m.Check(&client.APIError{Status: http.StatusUnauthorized})
	assert.Error(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, guard.Unauthenticated, m.Phase())
	st, _ := store.Load()
	assert.Empty(t, st.Token)
}

func TestCheckExpiresOnRejectedSocketHandshake(t *testing.T) {
	m := NewManager(fakeBackend(t), &MemoryStore{})
	_, err := m.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	expired := 0
	m.OnExpire(func() { expired++ })

	m.Check(&live.SocketError{Target: "server/1", Status: http.StatusForbidden, Err: errors.New("bad handshake")}) //nolint:errcheck
	assert.Equal(t, 0, expired)
	assert.Equal(t, guard.Authenticated, m.Phase())

	m.Check(&live.SocketError{Target: "server/1", Status: http.StatusUnauthorized, Err: errors.New("bad handshake")}) //nolint:errcheck
	assert.Equal(t, 1, expired)
	assert.Equal(t, guard.Unauthenticated, m.Phase())
}

func TestChangePasswordValidatesLocally(t *testing.T) {
	c := fakeBackend(t)
	s, err := Login(context.Background(), c, "alice", "secret")
	require.NoError(t, err)
	require.False(t, s.User.PasswordChanged)

	_, err = ChangePassword(context.Background(), c, s, "secret", "abcd", "abce")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	_, err = ChangePassword(context.Background(), c, s, "secret", "abc", "abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	_, err = ChangePassword(context.Background(), c, Session{}, "secret", "abcd", "abcd")
	assert.ErrorIs(t, err, ErrNoSession)

	s, err = ChangePassword(context.Background(), c, s, "secret", "abcd", "abcd")
	require.NoError(t, err)
	assert.True(t, s.User.PasswordChanged)
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := FileStore{Path: filepath.Join(t.TempDir(), "nested", "state.yaml")}

	st, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, State{}, st)

	require.NoError(t, fs.Save(State{Token: "t", SidebarCollapsed: true}))
	st, err = fs.Load()
	require.NoError(t, err)
	assert.Equal(t, State{Token: "t", SidebarCollapsed: true}, st)
}

func TestToggleSidebar(t *testing.T) {
	store := &MemoryStore{}
	m := NewManager(fakeBackend(t), store)
	_, _ = m.Restore(context.Background())

	collapsed, err := m.ToggleSidebar()
	require.NoError(t, err)
	assert.True(t, collapsed)
	st, _ := store.Load()
	assert.True(t, st.SidebarCollapsed)
}
