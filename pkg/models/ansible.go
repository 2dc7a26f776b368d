package models

// Execution states.
const (
	ExecRunning   = "running"
	ExecSuccess   = "success"
	ExecFailed    = "failed"
	ExecCancelled = "cancelled"
)

// Playbook is a stored Ansible playbook.
type Playbook struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// PlaybookRequest creates or updates a playbook.
type PlaybookRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Inventory is a stored Ansible inventory, optionally generated from a server group.
type Inventory struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	GroupID   *int    `json:"groupId"`
	GroupName *string `json:"groupName"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// InventoryRequest creates or updates an inventory.
type InventoryRequest struct {
	Name    string `json:"name,omitempty"`
	GroupID *int   `json:"groupId,omitempty"`
	Content string `json:"content,omitempty"`
}

// ExecuteRequest is the body of POST /ansible/playbooks/{id}/execute.
type ExecuteRequest struct {
	InventoryID int    `json:"inventoryId"`
	ExtraVars   string `json:"extraVars,omitempty"`
}

// AnsibleExecution is one playbook run.
type AnsibleExecution struct {
	ID            int     `json:"id"`
	PlaybookID    int     `json:"playbookId"`
	PlaybookName  string  `json:"playbookName"`
	InventoryID   *int    `json:"inventoryId"`
	TargetType    string  `json:"targetType"`
	TargetIDs     []int   `json:"targetIds"`
	Status        string  `json:"status"`
	StartedBy     int     `json:"startedBy"`
	StartedByName string  `json:"startedByName"`
	Log           *string `json:"log"`
	StartedAt     string  `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
}

// Finished returns true once the execution has left the running state.
func (e *AnsibleExecution) Finished() bool {
	return e.Status != ExecRunning
}
