package console

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/guard"
	"github.com/org/opsconsole/internal/session"
)

// requestIDMiddleware attaches a UUID request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := withRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder.
func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	rr.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// accessLogMiddleware logs every request with its outcome and user.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		ev := log.Info()
		if rr.statusCode >= 500 {
			ev = log.Error()
		}
		user := ""
		if s := sessionFromCtx(r.Context()); s.User != nil {
			user = s.User.UserID
		}
		ev.Str("request_id", requestIDFromCtx(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rr.statusCode).
			Dur("took", time.Since(start)).
			Str("user", user).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// sessionMiddleware restores the session from the cookie on every request,
// so guards always see the user as the backend currently knows it. A cookie
// the backend no longer accepts is cleared.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.readSessionCookie(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := session.Restore(r.Context(), s.api, token)
		if err != nil {
			log.Debug().Err(err).Str("request_id", requestIDFromCtx(r.Context())).Msg("session restore failed")
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// requireSession admits any signed-in user, including one who still has to
// change their password.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromCtx(r.Context())
		if !sess.Authenticated() {
			writeDecision(w, r, guard.Decision{Kind: guard.Redirect, Location: guard.LoginPath, Reason: "not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// guardPage runs the route guard for page on every request.
func guardPage(page string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromCtx(r.Context())
			d := guard.Evaluate(sess.Phase(), sess.User, page)
			if !d.Allowed() {
				writeDecision(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeDecision turns a guard redirect into a response. Page loads get a
// 303; API calls and websocket upgrades get 401 or 403 with the location
// in the body.
func writeDecision(w http.ResponseWriter, r *http.Request, d guard.Decision) {
	body := map[string]any{"redirect": d.Location, "reason": d.Reason}
	if r.Method == http.MethodGet && !isWebSocket(r) {
		w.Header().Set("Location", d.Location)
		writeJSON(w, http.StatusSeeOther, body)
		return
	}
	code := http.StatusForbidden
	if d.Location == guard.LoginPath {
		code = http.StatusUnauthorized
	}
	writeJSON(w, code, body)
}

func isWebSocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
