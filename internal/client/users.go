package client

import (
	"context"
	"strconv"

	"github.com/org/opsconsole/pkg/models"
)

// Users lists console users.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := c.get(ctx, "/users", nil, &out)
	return out, err
}

// CreateUser registers a new console user.
func (c *Client) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	var out models.User
	if err := c.post(ctx, "/users", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser edits a user's department, role, active flag or groups.
func (c *Client) UpdateUser(ctx context.Context, id int, req models.UpdateUserRequest) (*models.User, error) {
	var out models.User
	if err := c.put(ctx, segments("users", strconv.Itoa(id)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.delete(ctx, segments("users", strconv.Itoa(id)))
}

// Groups lists permission groups.
func (c *Client) Groups(ctx context.Context) ([]models.Group, error) {
	var out []models.Group
	err := c.get(ctx, "/users/groups", nil, &out)
	return out, err
}

// CreateGroup creates a permission group.
func (c *Client) CreateGroup(ctx context.Context, req models.GroupRequest) (*models.Group, error) {
	var out models.Group
	if err := c.post(ctx, "/users/groups", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateGroup edits a permission group.
func (c *Client) UpdateGroup(ctx context.Context, id int, req models.GroupRequest) (*models.Group, error) {
	var out models.Group
	if err := c.put(ctx, segments("users", "groups", strconv.Itoa(id)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGroup removes a permission group.
func (c *Client) DeleteGroup(ctx context.Context, id int) error {
	return c.delete(ctx, segments("users", "groups", strconv.Itoa(id)))
}

// Permissions lists every permission the backend knows about.
func (c *Client) Permissions(ctx context.Context) ([]models.Permission, error) {
	var out []models.Permission
	err := c.get(ctx, "/users/permissions", nil, &out)
	return out, err
}
