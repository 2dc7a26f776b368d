package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/org/opsconsole/pkg/models"
)

func deploymentPath(ref models.DeploymentRef, tail ...string) string {
	parts := append([]string{"k8s", "clusters", ref.Context, "namespaces", ref.Namespace, "deployments", ref.Name}, tail...)
	return segments(parts...)
}

// Clusters lists the kubeconfig contexts the backend manages.
func (c *Client) Clusters(ctx context.Context) (*models.ClusterList, error) {
	var out models.ClusterList
	if err := c.get(ctx, "/k8s/clusters", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Nodes lists the nodes of a cluster.
func (c *Client) Nodes(ctx context.Context, kubeContext string) ([]models.NodeInfo, error) {
	var out []models.NodeInfo
	err := c.get(ctx, segments("k8s", "clusters", kubeContext, "nodes"), nil, &out)
	return out, err
}

// Namespaces lists the namespaces of a cluster.
func (c *Client) Namespaces(ctx context.Context, kubeContext string) ([]models.NamespaceInfo, error) {
	var out []models.NamespaceInfo
	err := c.get(ctx, segments("k8s", "clusters", kubeContext, "namespaces"), nil, &out)
	return out, err
}

// Deployments lists deployments in a namespace, or in every namespace when
// namespace is empty.
func (c *Client) Deployments(ctx context.Context, kubeContext, namespace string) ([]models.DeploymentInfo, error) {
	path := segments("k8s", "clusters", kubeContext, "deployments")
	if namespace != "" {
		path = segments("k8s", "clusters", kubeContext, "namespaces", namespace, "deployments")
	}
	var out []models.DeploymentInfo
	err := c.get(ctx, path, nil, &out)
	return out, err
}

// Deployment fetches a single deployment.
func (c *Client) Deployment(ctx context.Context, ref models.DeploymentRef) (*models.DeploymentInfo, error) {
	var out models.DeploymentInfo
	if err := c.get(ctx, deploymentPath(ref), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DescribeDeployment returns kubectl-describe style text.
func (c *Client) DescribeDeployment(ctx context.Context, ref models.DeploymentRef) (string, error) {
	var out struct {
		Describe string `json:"describe"`
	}
	err := c.get(ctx, deploymentPath(ref, "describe"), nil, &out)
	return out.Describe, err
}

// DeploymentLogs returns the last tailLines of every pod in the deployment.
func (c *Client) DeploymentLogs(ctx context.Context, ref models.DeploymentRef, tailLines int) (*models.DeploymentLogs, error) {
	if tailLines <= 0 {
		tailLines = 100
	}
	var out models.DeploymentLogs
	q := url.Values{"tailLines": {strconv.Itoa(tailLines)}}
	if err := c.get(ctx, deploymentPath(ref, "logs"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeploymentPods lists the pods backing a deployment.
func (c *Client) DeploymentPods(ctx context.Context, ref models.DeploymentRef) ([]models.PodInfo, error) {
	var out []models.PodInfo
	err := c.get(ctx, deploymentPath(ref, "pods"), nil, &out)
	return out, err
}

// DeploymentYAML returns the deployment manifest.
func (c *Client) DeploymentYAML(ctx context.Context, ref models.DeploymentRef) (string, error) {
	var out struct {
		YAML string `json:"yaml"`
	}
	err := c.get(ctx, deploymentPath(ref, "yaml"), nil, &out)
	return out.YAML, err
}

// UpdateDeploymentYAML replaces the deployment manifest.
func (c *Client) UpdateDeploymentYAML(ctx context.Context, ref models.DeploymentRef, manifest string) (*models.Message, error) {
	var out models.Message
	body := struct {
		YAML string `json:"yaml"`
	}{manifest}
	if err := c.put(ctx, deploymentPath(ref, "yaml"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScaleDeployment sets the desired replica count.
func (c *Client) ScaleDeployment(ctx context.Context, ref models.DeploymentRef, replicas int) (*models.ScaleResponse, error) {
	var out models.ScaleResponse
	if err := c.patch(ctx, deploymentPath(ref, "scale"), models.ScaleRequest{Replicas: replicas}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RestartDeployment triggers a rollout restart.
func (c *Client) RestartDeployment(ctx context.Context, ref models.DeploymentRef) (*models.Message, error) {
	var out models.Message
	if err := c.post(ctx, deploymentPath(ref, "restart"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
