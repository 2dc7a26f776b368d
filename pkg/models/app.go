package models

// Sync states reported for an application.
const (
	SyncSynced    = "Synced"
	SyncOutOfSync = "OutOfSync"
)

// AppStatus is one row of the application listing.
type AppStatus struct {
	AppName        string `json:"appName"`
	Env            string `json:"env"`
	DeployVersion  string `json:"deployVersion"`
	K8sVersion     string `json:"k8sVersion"`
	SyncStatus     string `json:"syncStatus"`
	ReplicaCurrent int    `json:"replicaCurrent"`
	ReplicaDesired int    `json:"replicaDesired"`
}

// AppTag is a deployable version of an application.
type AppTag struct {
	Tag       string `json:"tag"`
	CreatedAt string `json:"createdAt"`
}

// RollbackRequest is the body of POST /apps/rollback.
type RollbackRequest struct {
	AppName       string `json:"appName"`
	Env           string `json:"env"`
	TargetVersion string `json:"targetVersion"`
}

// ReplicaRequest is the body of POST /apps/replica.
type ReplicaRequest struct {
	AppName       string `json:"appName"`
	Env           string `json:"env"`
	ComponentName string `json:"componentName,omitempty"`
	Replicas      int    `json:"replicas"`
}
