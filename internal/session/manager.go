package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/guard"
	"github.com/org/opsconsole/pkg/models"
)

// Manager owns the current Session for a single-user process such as the
// CLI. The token is written only by Login, Logout and Expire.
type Manager struct {
	client *client.Client
	store  Store

	mu       sync.RWMutex
	state    State
	current  Session
	phase    guard.Phase
	onExpire []func()
}

// NewManager returns a Manager in the Loading phase. Call Restore next.
func NewManager(c *client.Client, store Store) *Manager {
	return &Manager{client: c, store: store, phase: guard.Loading}
}

// Restore loads persisted state and, if a token is present, fetches the
// user behind it. A token the backend does not accept is forgotten.
func (m *Manager) Restore(ctx context.Context) (Session, error) {
	st, err := m.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable session state")
		st = State{}
	}

	m.mu.Lock()
	m.state = st
	m.phase = guard.Loading
	m.mu.Unlock()

	if st.Token == "" {
		m.set(Session{}, guard.Unauthenticated)
		return Session{}, nil
	}

	s, err := Restore(ctx, m.client, st.Token)
	if err != nil {
		log.Debug().Err(err).Msg("session restore failed")
		m.mu.Lock()
		m.state.Token = ""
		saveErr := m.store.Save(m.state)
		m.mu.Unlock()
		if saveErr != nil {
			log.Warn().Err(saveErr).Msg("failed to clear stored token")
		}
		m.set(Session{}, guard.Unauthenticated)
		return Session{}, err
	}
	m.set(s, guard.Authenticated)
	return s, nil
}

// Login signs in and persists the token. Nothing is stored on failure.
func (m *Manager) Login(ctx context.Context, userID, password string) (Session, error) {
	s, err := Login(ctx, m.client, userID, password)
	if err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	m.state.Token = s.Token
	saveErr := m.store.Save(m.state)
	m.mu.Unlock()
	m.set(s, guard.Authenticated)
	return s, saveErr
}

// ChangePassword updates the password and the cached user.
func (m *Manager) ChangePassword(ctx context.Context, current, next, confirm string) (Session, error) {
	s, err := ChangePassword(ctx, m.client, m.Current(), current, next, confirm)
	if err != nil {
		return s, err
	}
	m.set(s, guard.Authenticated)
	return s, nil
}

// Refresh re-fetches the user after a profile-changing action.
func (m *Manager) Refresh(ctx context.Context) (Session, error) {
	cur := m.Current()
	s, err := Restore(ctx, m.client, cur.Token)
	if err != nil {
		if client.IsUnauthorized(err) {
			m.Expire()
		}
		return cur, err
	}
	m.set(s, guard.Authenticated)
	return s, nil
}

// Logout forgets the token and the user.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.state.Token = ""
	err := m.store.Save(m.state)
	m.mu.Unlock()
	m.set(Session{}, guard.Unauthenticated)
	return err
}

// Expire is Logout triggered by the backend rejecting the token mid-session.
// Registered OnExpire callbacks run after the state is cleared.
func (m *Manager) Expire() {
	if err := m.Logout(); err != nil {
		log.Warn().Err(err).Msg("failed to persist logout")
	}
	m.mu.RLock()
	hooks := append([]func(){}, m.onExpire...)
	m.mu.RUnlock()
	log.Info().Msg("session expired")
	for _, fn := range hooks {
		fn()
	}
}

// OnExpire registers fn to run when the session is force-expired.
func (m *Manager) OnExpire(fn func()) {
	m.mu.Lock()
	m.onExpire = append(m.onExpire, fn)
	m.mu.Unlock()
}

// Check calls Expire when err is a 401 and returns err unchanged.
func (m *Manager) Check(err error) error {
	if client.IsUnauthorized(err) {
		m.Expire()
	}
	return err
}

// Current returns the current session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// User returns the signed-in user or nil.
func (m *Manager) User() *models.User {
	return m.Current().User
}

// Phase returns the guard phase.
func (m *Manager) Phase() guard.Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Client returns the API client bound to the current token.
func (m *Manager) Client() *client.Client {
	return m.Current().Client(m.client)
}

// SidebarCollapsed returns the persisted sidebar preference.
func (m *Manager) SidebarCollapsed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.SidebarCollapsed
}

// ToggleSidebar flips and persists the sidebar preference.
func (m *Manager) ToggleSidebar() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SidebarCollapsed = !m.state.SidebarCollapsed
	return m.state.SidebarCollapsed, m.store.Save(m.state)
}

func (m *Manager) set(s Session, p guard.Phase) {
	m.mu.Lock()
	m.current = s
	m.phase = p
	m.mu.Unlock()
}
