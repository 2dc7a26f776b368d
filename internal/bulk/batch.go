package bulk

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/pkg/models"
)

var (
	ErrRowLocked   = errors.New("row was registered and can no longer be edited")
	ErrNoSuchRow   = errors.New("no such row")
	ErrMissingHost = errors.New("hostname and IP are required")
)

type Status int

const (
	Idle Status = iota
	Loading
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Field names a Row column for Update.
type Field string

const (
	FieldHostname Field = "hostname"
	FieldIP       Field = "ip"
	FieldPort     Field = "port"
	FieldUser     Field = "user"
	FieldPassword Field = "password"
)

// Row is one server to register.
type Row struct {
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ipAddress"`
	SSHPort     int    `json:"sshPort"`
	SSHUsername string `json:"sshUsername"`
	SSHPassword string `json:"-"`

	Status   Status `json:"-"`
	State    string `json:"status"`
	Message  string `json:"message,omitempty"`
	ServerID int    `json:"serverId,omitempty"`
}

// Valid reports whether r has the fields the backend requires.
func (r *Row) Valid() bool {
	return r.Hostname != "" && r.IPAddress != ""
}

// Locked reports whether r was registered.
func (r *Row) Locked() bool { return r.Status == Success }

func (r *Row) setStatus(s Status, msg string) {
	r.Status = s
	r.State = s.String()
	r.Message = msg
}

func (r *Row) request(groupID *int) models.CreateServerRequest {
	return models.CreateServerRequest{
		Hostname:    r.Hostname,
		IPAddress:   r.IPAddress,
		SSHPort:     r.SSHPort,
		SSHUsername: r.SSHUsername,
		SSHPassword: r.SSHPassword,
		GroupID:     groupID,
	}
}

// Creator registers one server.
type Creator interface {
	CreateServer(ctx context.Context, req models.CreateServerRequest) (*models.Server, error)
}

// Batch is an editable set of rows and the group they will join.
type Batch struct {
	Rows    []*Row
	GroupID *int
}

// NewBatch parses text into a Batch.
func NewBatch(text string, groupID *int) *Batch {
	return &Batch{Rows: Parse(text), GroupID: groupID}
}

// ValidCount is the number of rows that would be sent.
func (b *Batch) ValidCount() int {
	n := 0
	for _, r := range b.Rows {
		if r.Valid() {
			n++
		}
	}
	return n
}

// AddRow appends a blank row with default port and user.
func (b *Batch) AddRow() *Row {
	r := &Row{SSHPort: models.DefaultSSHPort, SSHUsername: models.DefaultSSHUser}
	r.setStatus(Idle, "")
	b.Rows = append(b.Rows, r)
	return r
}

// RemoveRow drops row i.
func (b *Batch) RemoveRow(i int) error {
	if i < 0 || i >= len(b.Rows) {
		return ErrNoSuchRow
	}
	if b.Rows[i].Locked() {
		return ErrRowLocked
	}
	b.Rows = append(b.Rows[:i], b.Rows[i+1:]...)
	return nil
}

// Update edits one field of row i. Registered rows are read-only.
func (b *Batch) Update(i int, f Field, value string) error {
	if i < 0 || i >= len(b.Rows) {
		return ErrNoSuchRow
	}
	r := b.Rows[i]
	if r.Locked() {
		return ErrRowLocked
	}
	switch f {
	case FieldHostname:
		r.Hostname = value
	case FieldIP:
		r.IPAddress = value
	case FieldPort:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		r.SSHPort = n
	case FieldUser:
		r.SSHUsername = value
	case FieldPassword:
		r.SSHPassword = value
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	if r.Status == Error {
		r.setStatus(Idle, "")
	}
	return nil
}

// Summary counts the results of one Submit.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Invalid   int `json:"invalid"`
	Skipped   int `json:"skipped"`
}

// Done reports whether every row is registered.
func (s Summary) Done() bool { return s.Failed == 0 && s.Invalid == 0 }

// Submit registers rows one at a time. Rows already registered are skipped,
// rows missing hostname or IP are marked Error without a request, and each
// remaining row moves Idle, Loading, then Success or Error. progress, if
// not nil, is called after every status change.
func (b *Batch) Submit(ctx context.Context, c Creator, progress func(i int, r *Row)) (Summary, error) {
	var sum Summary
	notify := func(i int) {
		if progress != nil {
			progress(i, b.Rows[i])
		}
	}

	for i, r := range b.Rows {
		if r.Locked() {
			sum.Skipped++
			continue
		}
		if !r.Valid() {
			r.setStatus(Error, ErrMissingHost.Error())
			sum.Invalid++
			notify(i)
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		r.setStatus(Loading, "")
		notify(i)
		srv, err := c.CreateServer(ctx, r.request(b.GroupID))
		if err != nil {
			r.setStatus(Error, client.Message(err, "registration failed"))
			sum.Failed++
			log.Debug().Err(err).Str("hostname", r.Hostname).Msg("bulk registration row failed")
		} else {
			r.setStatus(Success, "")
			if srv != nil {
				r.ServerID = srv.ID
			}
			sum.Succeeded++
		}
		notify(i)
	}
	log.Info().
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Int("invalid", sum.Invalid).
		Int("skipped", sum.Skipped).
		Msg("bulk registration finished")
	return sum, nil
}
