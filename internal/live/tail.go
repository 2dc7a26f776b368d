package live

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Tail streams a read-only log into w until the backend closes the socket
// or ctx is cancelled. final is called exactly once when the stream ends so
// the caller can re-fetch the finished record. Tail never writes to the
// socket and never reconnects.
func Tail(ctx context.Context, d *Dialer, t Target, w io.Writer, final func(context.Context) error) error {
	var once sync.Once
	finish := func() {
		once.Do(func() {
			if final == nil {
				return
			}
			// The stream context may already be cancelled; the re-fetch
			// still has to run.
			if err := final(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Str("target", t.String()).Msg("re-fetch after log stream failed")
			}
		})
	}
	defer finish()

	conn, err := d.Dial(ctx, t)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &SocketError{Target: t.String(), Err: err}
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
}
