package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/org/opsconsole/pkg/models"
)

// Playbooks lists stored playbooks.
func (c *Client) Playbooks(ctx context.Context) ([]models.Playbook, error) {
	var out []models.Playbook
	err := c.get(ctx, "/ansible/playbooks", nil, &out)
	return out, err
}

// Playbook fetches one playbook.
func (c *Client) Playbook(ctx context.Context, id int) (*models.Playbook, error) {
	var out models.Playbook
	if err := c.get(ctx, segments("ansible", "playbooks", strconv.Itoa(id)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePlaybook stores a new playbook.
func (c *Client) CreatePlaybook(ctx context.Context, req models.PlaybookRequest) (*models.Playbook, error) {
	var out models.Playbook
	if err := c.post(ctx, "/ansible/playbooks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePlaybook edits a playbook.
func (c *Client) UpdatePlaybook(ctx context.Context, id int, req models.PlaybookRequest) (*models.Playbook, error) {
	var out models.Playbook
	if err := c.put(ctx, segments("ansible", "playbooks", strconv.Itoa(id)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePlaybook removes a playbook.
func (c *Client) DeletePlaybook(ctx context.Context, id int) error {
	return c.delete(ctx, segments("ansible", "playbooks", strconv.Itoa(id)))
}

// Inventories lists stored inventories.
func (c *Client) Inventories(ctx context.Context) ([]models.Inventory, error) {
	var out []models.Inventory
	err := c.get(ctx, "/ansible/inventories", nil, &out)
	return out, err
}

// Inventory fetches one inventory.
func (c *Client) Inventory(ctx context.Context, id int) (*models.Inventory, error) {
	var out models.Inventory
	if err := c.get(ctx, segments("ansible", "inventories", strconv.Itoa(id)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInventory stores a new inventory.
func (c *Client) CreateInventory(ctx context.Context, req models.InventoryRequest) (*models.Inventory, error) {
	var out models.Inventory
	if err := c.post(ctx, "/ansible/inventories", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateInventory edits an inventory.
func (c *Client) UpdateInventory(ctx context.Context, id int, req models.InventoryRequest) (*models.Inventory, error) {
	var out models.Inventory
	if err := c.put(ctx, segments("ansible", "inventories", strconv.Itoa(id)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInventory removes an inventory.
func (c *Client) DeleteInventory(ctx context.Context, id int) error {
	return c.delete(ctx, segments("ansible", "inventories", strconv.Itoa(id)))
}

// GenerateInventory renders inventory content from a server group.
func (c *Client) GenerateInventory(ctx context.Context, groupID int) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	err := c.post(ctx, segments("ansible", "inventories", "generate", strconv.Itoa(groupID)), nil, &out)
	return out.Content, err
}

// ExecutePlaybook starts a playbook run against an inventory.
func (c *Client) ExecutePlaybook(ctx context.Context, playbookID int, req models.ExecuteRequest) (*models.AnsibleExecution, error) {
	var out models.AnsibleExecution
	if err := c.post(ctx, segments("ansible", "playbooks", strconv.Itoa(playbookID), "execute"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Executions returns one page of playbook runs, newest first.
func (c *Client) Executions(ctx context.Context, page, pageSize int) (*models.Page[models.AnsibleExecution], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "pageSize": {strconv.Itoa(pageSize)}}
	var out models.Page[models.AnsibleExecution]
	if err := c.get(ctx, "/ansible/executions", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Execution fetches one playbook run including its log so far.
func (c *Client) Execution(ctx context.Context, id int) (*models.AnsibleExecution, error) {
	var out models.AnsibleExecution
	if err := c.get(ctx, segments("ansible", "executions", strconv.Itoa(id)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
