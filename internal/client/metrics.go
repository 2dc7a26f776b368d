package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/org/opsconsole/pkg/models"
)

// MetricSources lists registered Prometheus sources.
func (c *Client) MetricSources(ctx context.Context) ([]models.MetricSource, error) {
	var out []models.MetricSource
	err := c.get(ctx, "/metrics/sources", nil, &out)
	return out, err
}

// CreateMetricSource registers a Prometheus source.
func (c *Client) CreateMetricSource(ctx context.Context, req models.MetricSourceRequest) (*models.MetricSource, error) {
	var out models.MetricSource
	if err := c.post(ctx, "/metrics/sources", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMetricSource edits a Prometheus source.
func (c *Client) UpdateMetricSource(ctx context.Context, id int, req models.MetricSourceRequest) (*models.MetricSource, error) {
	var out models.MetricSource
	if err := c.put(ctx, segments("metrics", "sources", strconv.Itoa(id)), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMetricSource removes a Prometheus source.
func (c *Client) DeleteMetricSource(ctx context.Context, id int) error {
	return c.delete(ctx, segments("metrics", "sources", strconv.Itoa(id)))
}

// TestMetricSource asks the backend to query a source once.
func (c *Client) TestMetricSource(ctx context.Context, id int) (*models.Message, error) {
	var out models.Message
	if err := c.post(ctx, segments("metrics", "sources", strconv.Itoa(id), "test"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MetricTargets lists the scrape targets of a source.
func (c *Client) MetricTargets(ctx context.Context, id int) ([]models.MetricTarget, error) {
	var out []models.MetricTarget
	err := c.get(ctx, segments("metrics", "sources", strconv.Itoa(id), "targets"), nil, &out)
	return out, err
}

// ServerMetrics returns CPU, memory and disk series for ip over rng (e.g. "1h").
func (c *Client) ServerMetrics(ctx context.Context, id int, ip, rng string) (*models.ServerMetrics, error) {
	if rng == "" {
		rng = "1h"
	}
	q := url.Values{"ip": {ip}, "range": {rng}}
	var out models.ServerMetrics
	if err := c.get(ctx, segments("metrics", "sources", strconv.Itoa(id), "metrics"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
