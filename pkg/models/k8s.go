package models

// ResourceUsage is a used/total pair with a precomputed percentage.
type ResourceUsage struct {
	Total      float64 `json:"total"`
	Used       float64 `json:"used"`
	Percentage float64 `json:"percentage"`
}

// NodeStatus counts ready nodes in a cluster.
type NodeStatus struct {
	Total int `json:"total"`
	Ready int `json:"ready"`
}

// ClusterInfo summarises one kubeconfig context.
type ClusterInfo struct {
	Name      string         `json:"name"`
	Context   string         `json:"context"`
	APIServer string         `json:"apiServer"`
	Status    string         `json:"status"`
	Nodes     *NodeStatus    `json:"nodes"`
	CPU       *ResourceUsage `json:"cpu"`
	Memory    *ResourceUsage `json:"memory"`
}

// ClusterList is the response of GET /k8s/clusters.
type ClusterList struct {
	Clusters []ClusterInfo `json:"clusters"`
	Total    int           `json:"total"`
}

// NodeTaint is a single taint on a node.
type NodeTaint struct {
	Key    string  `json:"key"`
	Value  *string `json:"value"`
	Effect string  `json:"effect"`
}

// NodeInfo describes a cluster node.
type NodeInfo struct {
	Name      string            `json:"name"`
	Status    string            `json:"status"`
	Roles     []string          `json:"roles"`
	CPU       *ResourceUsage    `json:"cpu"`
	Memory    *ResourceUsage    `json:"memory"`
	Taints    []NodeTaint       `json:"taints"`
	Labels    map[string]string `json:"labels"`
	CreatedAt *string           `json:"createdAt"`
}

// NamespaceInfo describes a namespace and its aggregate usage.
type NamespaceInfo struct {
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryUsage float64 `json:"memoryUsage"`
	PodCount    int     `json:"podCount"`
	CreatedAt   *string `json:"createdAt"`
}

// DeploymentInfo describes a deployment's replica state.
type DeploymentInfo struct {
	Name              string  `json:"name"`
	Namespace         string  `json:"namespace"`
	Replicas          int     `json:"replicas"`
	ReadyReplicas     int     `json:"readyReplicas"`
	AvailableReplicas int     `json:"availableReplicas"`
	Status            string  `json:"status"`
	Image             *string `json:"image"`
	CreatedAt         *string `json:"createdAt"`
	UpdatedAt         *string `json:"updatedAt"`
}

// ContainerRef names a container inside a pod.
type ContainerRef struct {
	Name string `json:"name"`
}

// PodInfo is a pod backing a deployment.
type PodInfo struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Containers []ContainerRef `json:"containers"`
}

// PodLogEntry holds the tail of one container's log.
type PodLogEntry struct {
	PodName       string `json:"podName"`
	ContainerName string `json:"containerName"`
	Status        string `json:"status"`
	Logs          string `json:"logs"`
}

// DeploymentLogs is the response of GET .../deployments/{name}/logs.
type DeploymentLogs struct {
	Deployment string        `json:"deployment"`
	Pods       []PodLogEntry `json:"pods"`
	TotalPods  int           `json:"totalPods"`
}

// ScaleRequest is the body of PATCH .../scale.
type ScaleRequest struct {
	Replicas int `json:"replicas"`
}

// ScaleResponse is returned by PATCH .../scale.
type ScaleResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Replicas int    `json:"replicas"`
}

// DeploymentRef addresses a deployment within a cluster context.
type DeploymentRef struct {
	Context   string
	Namespace string
	Name      string
}

func (d DeploymentRef) String() string {
	return d.Context + "/" + d.Namespace + "/" + d.Name
}
