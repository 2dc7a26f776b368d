package client

import (
	"context"

	"github.com/org/opsconsole/pkg/models"
)

// Login exchanges credentials for a bearer token.
// The backend answers 401 for bad credentials and 403 for inactive accounts.
func (c *Client) Login(ctx context.Context, userID, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.post(ctx, "/auth/login", models.LoginRequest{UserID: userID, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword changes the caller's password and returns the refreshed user.
func (c *Client) ChangePassword(ctx context.Context, current, next string) (*models.ChangePasswordResponse, error) {
	var out models.ChangePasswordResponse
	err := c.post(ctx, "/auth/change-password", models.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the bound token belongs to.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.get(ctx, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
