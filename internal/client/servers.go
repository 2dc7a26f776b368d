package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/org/opsconsole/pkg/models"
)

// ServerGroups lists server groups.
func (c *Client) ServerGroups(ctx context.Context) ([]models.ServerGroup, error) {
	var out []models.ServerGroup
	err := c.get(ctx, "/servers/groups", nil, &out)
	return out, err
}

// CreateServerGroup creates a server group.
func (c *Client) CreateServerGroup(ctx context.Context, req models.ServerGroupRequest) (*models.ServerGroup, error) {
	var out models.ServerGroup
	if err := c.post(ctx, "/servers/groups", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateServerGroup edits a server group.
func (c *Client) UpdateServerGroup(ctx context.Context, id int, req models.ServerGroupRequest) (*models.ServerGroup, error) {
	var out models.ServerGroup
	if err := c.put(ctx, segments("servers", "groups", strconv.Itoa(id)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteServerGroup removes a server group.
func (c *Client) DeleteServerGroup(ctx context.Context, id int) error {
	return c.delete(ctx, segments("servers", "groups", strconv.Itoa(id)))
}

// Servers lists registered servers matching f.
func (c *Client) Servers(ctx context.Context, f models.ServerFilter) ([]models.Server, error) {
	q := url.Values{}
	if f.GroupID != 0 {
		q.Set("groupId", strconv.Itoa(f.GroupID))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	var out []models.Server
	err := c.get(ctx, "/servers/", q, &out)
	return out, err
}

// CreateServer registers a single server.
func (c *Client) CreateServer(ctx context.Context, req models.CreateServerRequest) (*models.Server, error) {
	var out models.Server
	if err := c.post(ctx, "/servers/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BulkCreateServers registers several servers in one call.
func (c *Client) BulkCreateServers(ctx context.Context, reqs []models.CreateServerRequest) ([]models.Server, error) {
	var out []models.Server
	body := struct {
		Servers []models.CreateServerRequest `json:"servers"`
	}{reqs}
	err := c.post(ctx, "/servers/bulk", body, &out)
	return out, err
}

// UpdateServer edits a server.
func (c *Client) UpdateServer(ctx context.Context, id int, req models.UpdateServerRequest) (*models.Server, error) {
	var out models.Server
	if err := c.put(ctx, segments("servers", strconv.Itoa(id)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteServer removes a server.
func (c *Client) DeleteServer(ctx context.Context, id int) error {
	return c.delete(ctx, segments("servers", strconv.Itoa(id)))
}

// TestSSH checks SSH connectivity to one server.
func (c *Client) TestSSH(ctx context.Context, id int) (*models.SSHTestResult, error) {
	var out models.SSHTestResult
	if err := c.post(ctx, segments("servers", strconv.Itoa(id), "test-ssh"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TestSSHBulk checks SSH connectivity to several servers.
func (c *Client) TestSSHBulk(ctx context.Context, ids []int) ([]models.SSHTestResult, error) {
	var out []models.SSHTestResult
	body := struct {
		ServerIDs []int `json:"serverIds"`
	}{ids}
	err := c.post(ctx, "/servers/test-ssh-bulk", body, &out)
	return out, err
}

// ExecuteOnGroup runs command on every server in a group.
func (c *Client) ExecuteOnGroup(ctx context.Context, groupID int, command string) ([]models.GroupExecuteResult, error) {
	var out []models.GroupExecuteResult
	body := struct {
		Command string `json:"command"`
	}{command}
	err := c.post(ctx, segments("servers", "groups", strconv.Itoa(groupID), "execute"), body, &out)
	return out, err
}
