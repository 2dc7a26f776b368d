// Package session holds the signed-in user's token and profile and the small
// amount of client state that survives restarts.
//
// A Session is passed explicitly to everything that talks to the backend;
// nothing in this module reads the token from a global.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/guard"
	"github.com/org/opsconsole/pkg/models"
)

// MinPasswordLength is the shortest password ChangePassword accepts.
const MinPasswordLength = 4

var (
	ErrBadCredentials   = errors.New("incorrect id/password")
	ErrInactive         = errors.New("account is inactive")
	ErrPasswordMismatch = errors.New("new passwords do not match")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrNoSession        = errors.New("not signed in")
)

// Session is a bearer token and the user it was issued to.
type Session struct {
	Token string
	User  *models.User
}

// Authenticated reports whether s carries both a token and a user.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Phase maps s onto the route guard's state machine.
func (s Session) Phase() guard.Phase {
	if s.Authenticated() {
		return guard.Authenticated
	}
	return guard.Unauthenticated
}

// Client binds s's token to c.
func (s Session) Client(c *client.Client) *client.Client {
	return c.WithToken(s.Token)
}

// Restore re-fetches the user behind token. Any failure yields an empty
// session; the caller is expected to forget the token.
func Restore(ctx context.Context, c *client.Client, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	user, err := c.WithToken(token).Me(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("restoring session: %w", err)
	}
	return Session{Token: token, User: user}, nil
}

// Login exchanges credentials for a session. 401 and 403 are mapped to
// ErrBadCredentials and ErrInactive.
func Login(ctx context.Context, c *client.Client, userID, password string) (Session, error) {
	resp, err := c.WithToken("").Login(ctx, userID, password)
	if err != nil {
		switch client.StatusOf(err) {
		case http.StatusUnauthorized:
			return Session{}, ErrBadCredentials
		case http.StatusForbidden:
			return Session{}, ErrInactive
		}
		return Session{}, err
	}
	if resp.Token == "" || resp.User == nil {
		return Session{}, errors.New("login response is missing token or user")
	}
	log.Info().Str("user", resp.User.UserID).Msg("signed in")
	return Session{Token: resp.Token, User: resp.User}, nil
}

// ChangePassword validates the new password locally, submits it and returns
// s with the refreshed user.
func ChangePassword(ctx context.Context, c *client.Client, s Session, current, next, confirm string) (Session, error) {
	if !s.Authenticated() {
		return s, ErrNoSession
	}
	if next != confirm {
		return s, ErrPasswordMismatch
	}
	if len(next) < MinPasswordLength {
		return s, ErrPasswordTooShort
	}
	resp, err := s.Client(c).ChangePassword(ctx, current, next)
	if err != nil {
		return s, err
	}
	if resp.User != nil {
		s.User = resp.User
	}
	return s, nil
}
