package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoTarget     = errors.New("no target selected")
	ErrTargetLocked = errors.New("target cannot change while connected")
	ErrNotOpen      = errors.New("session is not open")
	ErrClosed       = errors.New("session is closed")
	ErrConnecting   = errors.New("session is already connecting")
)

type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Session is one interactive terminal view. It owns at most one socket at a
// time; connecting again tears the previous one down first.
type Session struct {
	dialer *Dialer
	term   Terminal

	mu       sync.Mutex
	state    State
	target   Target
	conn     *websocket.Conn
	done     chan struct{}
	lastErr  error
	closed   bool
	onChange func(State)

	writeMu sync.Mutex
	release sync.Once
}

// NewSession returns an idle session rendering into term.
func NewSession(d *Dialer, term Terminal) *Session {
	done := make(chan struct{})
	close(done)
	return &Session{dialer: d, term: term, done: done}
}

// OnStateChange registers fn to be called after every transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Select sets the target for the next Connect.
func (s *Session) Select(t Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state == Open || s.state == Connecting {
		return ErrTargetLocked
	}
	s.target = t
	return nil
}

// Target returns the selected target.
func (s *Session) Target() Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the last connection, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Done is closed when the current connection ends.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Connect opens a socket to the selected target. It fails with
// ErrConnecting while another Connect is still dialing.
func (s *Session) Connect(ctx context.Context) error {
	s.Disconnect()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == Connecting {
		s.mu.Unlock()
		return ErrConnecting
	}
	t := s.target
	if t == nil {
		s.mu.Unlock()
		return ErrNoTarget
	}
	s.state = Connecting
	s.lastErr = nil
	s.mu.Unlock()
	s.changed(Connecting)

	conn, err := s.dialer.Dial(ctx, t)
	if err != nil {
		s.mu.Lock()
		s.state = Errored
		s.lastErr = err
		s.mu.Unlock()
		s.changed(Errored)
		s.term.Notice(NoticeError)
		log.Debug().Err(err).Str("target", t.String()).Msg("live session dial failed")
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.done = done
	s.state = Open
	s.mu.Unlock()
	s.changed(Open)
	log.Debug().Str("target", t.String()).Msg("live session open")

	go s.readLoop(conn, done)
	go s.keepalive(conn, done)
	return nil
}

// Write forwards input to the backend. Input typed while the session is
// not open is rejected.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	open := s.state == Open
	s.mu.Unlock()
	if !open || conn == nil {
		return 0, ErrNotOpen
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	if err := conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, &SocketError{Target: s.Target().String(), Err: err}
	}
	return len(p), nil
}

// Disconnect closes the socket, if any, and leaves the session
// reconnectable.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn, done := s.conn, s.done
	if conn == nil {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = Closed
	s.mu.Unlock()

	s.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()
	conn.Close()
	<-done

	s.changed(Closed)
	s.term.Notice(NoticeClosed)
}

// Close disconnects and releases the terminal. It is safe to call more than
// once; the terminal is released exactly once.
func (s *Session) Close() error {
	s.Disconnect()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.release.Do(s.term.Release)
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.ended(conn, err)
			return
		}
		if _, err := s.term.Write(data); err != nil {
			log.Debug().Err(err).Msg("terminal write failed")
		}
	}
}

// ended records how a connection finished unless it was already
// superseded by Disconnect or a newer Connect.
func (s *Session) ended(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	state, notice := Closed, NoticeClosed
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		state, notice = Errored, NoticeError
		s.lastErr = &SocketError{Target: s.target.String(), Err: err}
	}
	s.state = state
	s.mu.Unlock()

	conn.Close()
	s.changed(state)
	s.term.Notice(notice)
}

func (s *Session) keepalive(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Session) changed(st State) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
