// Package notify keeps transient notifications (toasts) that dismiss
// themselves after a fixed interval.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultTTL is how long a toast stays visible.
const DefaultTTL = 3 * time.Second

type Level int

const (
	Success Level = iota
	Error
	Info
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Toast is a single notification.
type Toast struct {
	ID      int64     `json:"id"`
	Level   Level     `json:"-"`
	Kind    string    `json:"level"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

type EventKind int

const (
	Shown EventKind = iota
	Dismissed
)

// Event is delivered to subscribers when a toast appears or goes away.
type Event struct {
	Kind  EventKind
	Toast Toast
}

// Notifier is what the action coordinator reports outcomes to.
type Notifier interface {
	Success(msg string) Toast
	Error(msg string) Toast
}

// Center is a Notifier that tracks active toasts.
type Center struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	nextID int64
	active []Toast
	timers map[int64]*time.Timer
	subs   map[int]func(Event)
	subID  int
}

// NewCenter returns a Center. ttl <= 0 uses DefaultTTL.
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:    ttl,
		now:    time.Now,
		timers: make(map[int64]*time.Timer),
		subs:   make(map[int]func(Event)),
	}
}

func (c *Center) Success(msg string) Toast { return c.Show(Success, msg) }
func (c *Center) Error(msg string) Toast   { return c.Show(Error, msg) }
func (c *Center) Info(msg string) Toast    { return c.Show(Info, msg) }

// Show adds a toast and schedules its dismissal.
func (c *Center) Show(level Level, msg string) Toast {
	c.mu.Lock()
	c.nextID++
	t := Toast{ID: c.nextID, Level: level, Kind: level.String(), Message: msg, Created: c.now()}
	c.active = append(c.active, t)
	id := t.ID
	c.timers[id] = time.AfterFunc(c.ttl, func() { c.Dismiss(id) })
	subs := c.snapshotSubs()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Kind: Shown, Toast: t})
	}
	return t
}

// Dismiss removes a toast early. Unknown ids are ignored.
func (c *Center) Dismiss(id int64) {
	c.mu.Lock()
	var removed *Toast
	for i, t := range c.active {
		if t.ID == id {
			removed = &t
			c.active = append(c.active[:i], c.active[i+1:]...)
			break
		}
	}
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	subs := c.snapshotSubs()
	c.mu.Unlock()

	if removed == nil {
		return
	}
	for _, fn := range subs {
		fn(Event{Kind: Dismissed, Toast: *removed})
	}
}

// Active returns the visible toasts, oldest first.
func (c *Center) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.active...)
}

// Subscribe registers fn for toast events and returns a func that removes it.
func (c *Center) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subID++
	id := c.subID
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close stops all pending dismissal timers.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Center) snapshotSubs() []func(Event) {
	out := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

// Printer returns a subscriber that writes shown toasts to w, one per line.
func Printer(w io.Writer) func(Event) {
	var mu sync.Mutex
	return func(e Event) {
		if e.Kind != Shown {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		prefix := "OK"
		switch e.Toast.Level {
		case Error:
			prefix = "Error"
		case Info:
			prefix = "Info"
		}
		fmt.Fprintf(w, "%s: %s\n", prefix, e.Toast.Message)
	}
}

// Recorder is a Notifier that only remembers what it was told. The console
// gateway uses one per request and returns the toasts in the response.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Success(msg string) Toast { return r.add(Success, msg) }
func (r *Recorder) Error(msg string) Toast   { return r.add(Error, msg) }

// Toasts returns everything recorded so far.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

func (r *Recorder) add(level Level, msg string) Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := Toast{ID: int64(len(r.toasts) + 1), Level: level, Kind: level.String(), Message: msg, Created: time.Now()}
	r.toasts = append(r.toasts, t)
	return t
}
