package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/org/opsconsole/pkg/models"
)

// AuditFilter specifies query parameters for audit log retrieval.
// Zero values are omitted from the query.
type AuditFilter struct {
	StartDate string
	EndDate   string
	UserID    int
	Menu      string
	Action    string
	Page      int
	PageSize  int
}

func (f AuditFilter) values() url.Values {
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	q := url.Values{
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(size)},
	}
	if f.StartDate != "" {
		q.Set("startDate", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("endDate", f.EndDate)
	}
	if f.UserID != 0 {
		q.Set("userId", strconv.Itoa(f.UserID))
	}
	if f.Menu != "" {
		q.Set("menu", f.Menu)
	}
	if f.Action != "" {
		q.Set("action", f.Action)
	}
	return q
}

// AuditLogs returns one page of audit entries.
func (c *Client) AuditLogs(ctx context.Context, f AuditFilter) (*models.Page[models.AuditLog], error) {
	var out models.Page[models.AuditLog]
	if err := c.get(ctx, "/audit-logs", f.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
