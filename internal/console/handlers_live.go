package console

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/live"
	"github.com/org/opsconsole/internal/poll"
	"github.com/org/opsconsole/pkg/models"
)

const relayWriteWait = 10 * time.Second

// Same-origin only: the default CheckOrigin is kept.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// socketWriter writes each call as one text frame to the browser.
type socketWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *socketWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(relayWriteWait)) //nolint:errcheck
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *socketWriter) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ExecRelayHandler handles GET /ws/exec
func (s *Server) ExecRelayHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t := live.ExecTarget{
		Context:   q.Get("context"),
		Namespace: q.Get("namespace"),
		Pod:       q.Get("pod"),
		Container: q.Get("container"),
	}
	if t.Context == "" || t.Namespace == "" || t.Pod == "" {
		writeError(w, http.StatusBadRequest, "context, namespace and pod are required")
		return
	}
	s.relay(w, r, "exec", t)
}

// SSHRelayHandler handles GET /ws/ssh
func (s *Server) SSHRelayHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("serverId"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "serverId is required")
		return
	}
	s.relay(w, r, "ssh", live.SSHTarget{ServerID: id})
}

// relay bridges a browser socket and an interactive backend session. Either
// side closing ends both.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, kind string, t live.Target) {
	bc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	liveSessions.WithLabelValues(kind).Inc()
	defer liveSessions.WithLabelValues(kind).Dec()

	sess := sessionFromCtx(r.Context())
	term := &live.WriterTerminal{
		W:         &socketWriter{conn: bc},
		OnRelease: func() { bc.Close() },
	}
	ls := live.NewSession(live.NewDialer(sess.Client(s.api)), term)
	defer ls.Close() //nolint:errcheck

	logger := log.With().
		Str("request_id", requestIDFromCtx(r.Context())).
		Str("user", sess.User.UserID).
		Str("target", t.String()).
		Logger()

	if err := ls.Select(t); err != nil {
		return
	}
	if err := ls.Connect(r.Context()); err != nil {
		logger.Warn().Err(err).Msg("relay dial failed")
		return
	}
	logger.Info().Str("kind", kind).Msg("relay open")

	done := ls.Done()
	go func() {
		<-done
		ls.Close() //nolint:errcheck
	}()

	for {
		_, data, err := bc.ReadMessage()
		if err != nil {
			break
		}
		if _, err := ls.Write(data); err != nil {
			break
		}
	}
	logger.Info().Str("kind", kind).Msg("relay closed")
}

type executionFrame struct {
	Type      string                   `json:"type"`
	Execution *models.AnsibleExecution `json:"execution,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// AnsibleRelayHandler handles GET /ws/ansible. The execution log is streamed
// as text frames; when it ends one JSON frame carries the finished record.
func (s *Server) AnsibleRelayHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("executionId"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "executionId is required")
		return
	}
	bc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer bc.Close()
	liveSessions.WithLabelValues("ansible").Inc()
	defer liveSessions.WithLabelValues("ansible").Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go drain(bc, cancel)

	api := sessionFromCtx(r.Context()).Client(s.api)
	out := &socketWriter{conn: bc}
	final := func(ctx context.Context) error {
		exec, err := api.Execution(ctx, id)
		if err != nil {
			out.writeJSON(executionFrame{Type: "execution", Error: client.Message(err, "failed to load execution")}) //nolint:errcheck
			return err
		}
		return out.writeJSON(executionFrame{Type: "execution", Execution: exec})
	}

	if err := live.Tail(ctx, live.NewDialer(api), live.AnsibleTarget{ExecutionID: id}, out, final); err != nil {
		log.Warn().Err(err).Int("execution", id).Msg("execution log stream failed")
		out.Write([]byte(live.NoticeError)) //nolint:errcheck
	}
	bc.WriteControl(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(relayWriteWait))
}

// drain reads and discards browser frames until the socket closes.
func drain(conn *websocket.Conn, onClose func()) {
	defer onClose()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type watchFrame struct {
	Resource string `json:"resource"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WatchHandler handles GET /ws/watch. It streams one k8s listing, re-fetched
// on the resource's polling interval. Browsers watching the same listing
// with the same token share one fetch loop.
func (s *Server) WatchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource, kctx, ns := q.Get("resource"), q.Get("context"), q.Get("namespace")

	sess := sessionFromCtx(r.Context())
	api := sess.Client(s.api)
	var fetch func(context.Context) (any, error)
	switch resource {
	case poll.Clusters:
		fetch = func(ctx context.Context) (any, error) { return api.Clusters(ctx) }
	case poll.Nodes:
		fetch = func(ctx context.Context) (any, error) { return api.Nodes(ctx, kctx) }
	case poll.Namespaces:
		fetch = func(ctx context.Context) (any, error) { return api.Namespaces(ctx, kctx) }
	case poll.Deployments:
		fetch = func(ctx context.Context) (any, error) { return api.Deployments(ctx, kctx, ns) }
	default:
		writeError(w, http.StatusBadRequest, "unknown resource")
		return
	}
	if resource != poll.Clusters && kctx == "" {
		writeError(w, http.StatusBadRequest, "context is required")
		return
	}
	if resource == poll.Deployments && ns == "" {
		writeError(w, http.StatusBadRequest, "namespace is required")
		return
	}

	bc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer bc.Close()
	liveSessions.WithLabelValues("watch").Inc()
	defer liveSessions.WithLabelValues("watch").Dec()

	out := &socketWriter{conn: bc}
	key := watchKey(sess.Token, resource, kctx, ns)
	stop := poll.Watch(s.sched, key, 0, fetch, func(v any, err error) {
		f := watchFrame{Resource: resource, Data: v}
		if err != nil {
			f = watchFrame{Resource: resource, Error: client.Message(err, "failed to load "+resource)}
		}
		out.writeJSON(f) //nolint:errcheck
	})
	defer stop()

	drain(bc, func() {})
}

// watchKey scopes a watch to the token whose fetch loop serves it, so one
// browser signing out never leaves another polling with a revoked token.
func watchKey(token, resource, kctx, ns string) poll.Key {
	sum := sha256.Sum256([]byte(token))
	return poll.NewKey(resource, hex.EncodeToString(sum[:8]), kctx, ns)
}
