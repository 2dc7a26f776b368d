package client

import (
	"context"
	"net/url"

	"github.com/org/opsconsole/pkg/models"
)

// Apps lists deployed applications and their replica state.
func (c *Client) Apps(ctx context.Context) ([]models.AppStatus, error) {
	var out []models.AppStatus
	err := c.get(ctx, "/apps", nil, &out)
	return out, err
}

// AppTags lists the versions an application can be rolled to.
func (c *Client) AppTags(ctx context.Context, appName, env string) ([]models.AppTag, error) {
	q := url.Values{"appName": {appName}}
	if env != "" {
		q.Set("env", env)
	}
	var out []models.AppTag
	err := c.get(ctx, "/apps/tags", q, &out)
	return out, err
}

// Rollback deploys targetVersion of an application in env.
func (c *Client) Rollback(ctx context.Context, req models.RollbackRequest) (*models.Message, error) {
	var out models.Message
	if err := c.post(ctx, "/apps/rollback", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangeReplica sets the replica count of an application or one of its components.
func (c *Client) ChangeReplica(ctx context.Context, req models.ReplicaRequest) (*models.Message, error) {
	var out models.Message
	if err := c.post(ctx, "/apps/replica", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
