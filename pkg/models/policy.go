package models

// Permission types.
const (
	PermAppDeploy  = "app_deploy"
	PermPageAccess = "page_access"
)

// Permission actions.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// Permission is a backend-owned (type, target, action) tuple. Read-only on the client.
type Permission struct {
	ID     int    `json:"id"`
	Type   string `json:"type"`
	Target string `json:"target"`
	Action string `json:"action"`
}

// UserPermission is one entry of a user's resolved permission list.
type UserPermission struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Action string `json:"action"`
}

// Matches returns true if the entry equals the given tuple.
func (p UserPermission) Matches(typ, target, action string) bool {
	return p.Type == typ && p.Target == target && p.Action == action
}

// Group bundles permission ids and member ids for display and editing.
// Authorization never reads groups directly.
type Group struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	Permissions []int  `json:"permissions"`
	Members     []int  `json:"members"`
}

// GroupRequest is the body of POST /users/groups and PUT /users/groups/{id}.
type GroupRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Permissions []int  `json:"permissions,omitempty"`
}

// AuditLog records one user action as stored by the backend.
type AuditLog struct {
	ID         int64          `json:"id"`
	UserID     int            `json:"userId"`
	UserName   string         `json:"userName"`
	Action     string         `json:"action"`
	Menu       string         `json:"menu"`
	TargetType string         `json:"targetType"`
	TargetName string         `json:"targetName"`
	Detail     map[string]any `json:"detail"`
	Result     string         `json:"result"`
	IPAddress  string         `json:"ipAddress"`
	CreatedAt  string         `json:"createdAt"`
}

// Page is a paginated list response.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}
