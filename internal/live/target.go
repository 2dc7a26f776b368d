package live

import (
	"net/url"
	"strconv"

	"github.com/org/opsconsole/internal/client"
)

// Target is the backend endpoint a session attaches to.
type Target interface {
	Path() string
	Query() url.Values
	String() string
}

// ExecTarget is a shell inside a pod container.
type ExecTarget struct {
	Context   string
	Namespace string
	Pod       string
	Container string
}

func (t ExecTarget) Path() string { return "/k8s/ws/exec" }

func (t ExecTarget) Query() url.Values {
	return url.Values{
		"context":   {t.Context},
		"namespace": {t.Namespace},
		"pod":       {t.Pod},
		"container": {t.Container},
	}
}

func (t ExecTarget) String() string {
	return t.Context + "/" + t.Namespace + "/" + t.Pod + "/" + t.Container
}

// SSHTarget is a shell on a registered server.
type SSHTarget struct {
	ServerID int
}

func (t SSHTarget) Path() string { return "/ws/ssh" }

func (t SSHTarget) Query() url.Values {
	return url.Values{"serverId": {strconv.Itoa(t.ServerID)}}
}

func (t SSHTarget) String() string { return "server/" + strconv.Itoa(t.ServerID) }

// AnsibleTarget is the log stream of a running playbook execution.
type AnsibleTarget struct {
	ExecutionID int
}

func (t AnsibleTarget) Path() string { return "/ws/ansible" }

func (t AnsibleTarget) Query() url.Values {
	return url.Values{"executionId": {strconv.Itoa(t.ExecutionID)}}
}

func (t AnsibleTarget) String() string { return "execution/" + strconv.Itoa(t.ExecutionID) }

// URL returns the websocket URL for t under base. Browsers cannot set
// headers on websocket requests, so the backend expects the token in the
// query string.
func URL(base, token string, t Target) (string, error) {
	q := t.Query()
	q.Set("token", token)
	return client.WebSocketURL(base, t.Path(), q)
}
