package live

import (
	"fmt"
	"io"
	"sync"
)

// Notices written into the terminal when a session ends.
const (
	NoticeClosed = "connection closed"
	NoticeError  = "connection error"
)

// Terminal is the surface a session renders into.
type Terminal interface {
	io.Writer
	// Notice shows a status line such as NoticeClosed.
	Notice(msg string)
	// Release frees the terminal. It is called exactly once.
	Release()
}

// WriterTerminal renders into an io.Writer and shows notices in red.
type WriterTerminal struct {
	W         io.Writer
	OnRelease func()

	mu sync.Mutex
}

func (t *WriterTerminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.W.Write(p)
}

func (t *WriterTerminal) Notice(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.W, "\r\n\x1b[31m%s\x1b[0m\r\n", msg)
}

func (t *WriterTerminal) Release() {
	if t.OnRelease != nil {
		t.OnRelease()
	}
}
