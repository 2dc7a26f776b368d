// Package live manages websocket sessions to the backend: interactive
// exec and SSH shells, and read-only log tails.
package live

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/org/opsconsole/internal/client"
)

const (
	// Time allowed to write a frame.
	writeWait = 10 * time.Second
	// Time allowed between pongs before the socket is considered dead.
	pongWait = 75 * time.Second
	// Ping period, less than pongWait.
	pingPeriod = 25 * time.Second
	// Largest frame accepted from the backend.
	readLimit = 1 << 16

	handshakeTimeout = 15 * time.Second
)

// SocketError is a failed or abnormally ended websocket. It is shown in the
// terminal, not as a toast.
type SocketError struct {
	Target string
	Status int
	Err    error
}

func (e *SocketError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("websocket %s: HTTP %d: %v", e.Target, e.Status, e.Err)
	}
	return fmt.Sprintf("websocket %s: %v", e.Target, e.Err)
}

func (e *SocketError) Unwrap() error { return e.Err }

// HTTPStatus returns the status of a rejected handshake, or 0.
func (e *SocketError) HTTPStatus() int { return e.Status }

// Dialer opens websocket connections on behalf of one session token.
type Dialer struct {
	base  string
	token string
	ws    *websocket.Dialer
}

// NewDialer derives a Dialer from c, reusing its base URL, token and TLS
// settings.
func NewDialer(c *client.Client) *Dialer {
	var tlsCfg *tls.Config
	if tr, ok := c.HTTPClient().Transport.(*http.Transport); ok && tr.TLSClientConfig != nil {
		tlsCfg = tr.TLSClientConfig.Clone()
	}
	return &Dialer{
		base:  c.BaseURL(),
		token: c.Token(),
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			TLSClientConfig:  tlsCfg,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
}

// Dial connects to t.
func (d *Dialer) Dial(ctx context.Context, t Target) (*websocket.Conn, error) {
	u, err := URL(d.base, d.token, t)
	if err != nil {
		return nil, &SocketError{Target: t.String(), Err: err}
	}
	conn, resp, err := d.ws.DialContext(ctx, u, nil)
	if err != nil {
		se := &SocketError{Target: t.String(), Err: err}
		if resp != nil {
			se.Status = resp.StatusCode
			resp.Body.Close()
		}
		return nil, se
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}
