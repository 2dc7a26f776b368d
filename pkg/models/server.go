package models

// Server reachability as last observed by the backend.
const (
	ServerUnknown = "unknown"
	ServerOnline  = "online"
	ServerOffline = "offline"
)

// DefaultSSHPort and DefaultSSHUser are applied when registration input leaves them blank.
const (
	DefaultSSHPort = 22
	DefaultSSHUser = "root"
)

// ServerGroup is a named collection of servers.
type ServerGroup struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ServerCount int    `json:"serverCount"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// ServerGroupRequest creates or updates a server group.
type ServerGroupRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Server is a registered bare-metal or VM host.
type Server struct {
	ID            int     `json:"id"`
	Hostname      string  `json:"hostname"`
	IPAddress     string  `json:"ipAddress"`
	SSHPort       int     `json:"sshPort"`
	SSHUsername   string  `json:"sshUsername"`
	OSInfo        string  `json:"osInfo"`
	Description   string  `json:"description"`
	GroupID       *int    `json:"groupId"`
	GroupName     *string `json:"groupName"`
	Status        string  `json:"status"`
	LastCheckedAt *string `json:"lastCheckedAt"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// CreateServerRequest is the body of POST /servers/.
type CreateServerRequest struct {
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ipAddress"`
	SSHPort     int    `json:"sshPort"`
	SSHUsername string `json:"sshUsername"`
	SSHPassword string `json:"sshPassword"`
	OSInfo      string `json:"osInfo,omitempty"`
	Description string `json:"description,omitempty"`
	GroupID     *int   `json:"groupId"`
}

// UpdateServerRequest is the body of PUT /servers/{id}. Nil fields are left unchanged.
type UpdateServerRequest struct {
	Hostname    *string `json:"hostname,omitempty"`
	IPAddress   *string `json:"ipAddress,omitempty"`
	SSHPort     *int    `json:"sshPort,omitempty"`
	SSHUsername *string `json:"sshUsername,omitempty"`
	SSHPassword *string `json:"sshPassword,omitempty"`
	OSInfo      *string `json:"osInfo,omitempty"`
	Description *string `json:"description,omitempty"`
	GroupID     *int    `json:"groupId,omitempty"`
}

// ServerFilter narrows GET /servers/.
type ServerFilter struct {
	GroupID int
	Status  string
	Search  string
}

// SSHTestResult is the outcome of an SSH connectivity check.
type SSHTestResult struct {
	ServerID  int    `json:"serverId"`
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ipAddress"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// GroupExecuteResult is one server's output from a group command.
type GroupExecuteResult struct {
	ServerID  int    `json:"serverId"`
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ipAddress"`
	ExitCode  int    `json:"exitCode"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
}

// MetricSource is a Prometheus endpoint registered with the backend.
type MetricSource struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// MetricSourceRequest creates or updates a metric source.
type MetricSourceRequest struct {
	Name        string `json:"name,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

// MetricTarget is a scrape target, matched to a registered server when possible.
type MetricTarget struct {
	Instance        string  `json:"instance"`
	Job             string  `json:"job"`
	Health          string  `json:"health"`
	MatchedServerID *int    `json:"matchedServerId"`
	MatchedHostname *string `json:"matchedHostname"`
}

// Sample is a [unix-seconds, value] pair as returned by Prometheus range queries.
type Sample [2]any

// ServerMetrics holds CPU, memory and disk series for one host.
type ServerMetrics struct {
	CPU    []Sample `json:"cpu"`
	Memory []Sample `json:"memory"`
	Disk   []Sample `json:"disk"`
}
