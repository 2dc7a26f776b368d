// Package poll re-fetches listings on an interval. Watchers of the same key
// share one ticker, and fetches for one key never overlap.
package poll

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Resource names with a default interval.
const (
	Clusters    = "clusters"
	Nodes       = "nodes"
	Namespaces  = "namespaces"
	Deployments = "deployments"
)

var intervals = map[string]time.Duration{
	Clusters:    15 * time.Second,
	Nodes:       15 * time.Second,
	Namespaces:  15 * time.Second,
	Deployments: 10 * time.Second,
}

// DefaultInterval is used for resources without a listed interval.
const DefaultInterval = 15 * time.Second

// Interval returns the polling interval for resource.
func Interval(resource string) time.Duration {
	if d, ok := intervals[resource]; ok {
		return d
	}
	return DefaultInterval
}

// Key identifies one polled listing.
type Key struct {
	Resource string
	Params   string
}

// NewKey builds a Key from a resource and its parameters.
func NewKey(resource string, params ...string) Key {
	return Key{Resource: resource, Params: strings.Join(params, "/")}
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Resource
	}
	return k.Resource + ":" + k.Params
}

// Options configures a Scheduler.
type Options struct {
	// OnFetch is called after every fetch.
	OnFetch func(k Key, took time.Duration, err error)
}

// Scheduler runs the watches.
type Scheduler struct {
	opts  Options
	group singleflight.Group

	mu      sync.Mutex
	watches map[Key]*watch
	closed  bool
}

type watch struct {
	key      Key
	interval time.Duration
	fetch    func(context.Context) (any, error)
	cancel   context.CancelFunc
	ctx      context.Context

	mu        sync.Mutex
	listeners map[int]func(any, error)
	nextID    int
	started   uint64
	delivered uint64
	has       bool
	last      any
	lastErr   error
}

// New returns an empty Scheduler.
func New(opts Options) *Scheduler {
	return &Scheduler{opts: opts, watches: make(map[Key]*watch)}
}

// Watch subscribes listener to key. The first watcher of a key starts its
// ticker with an immediate fetch; later watchers share it and receive the
// latest result right away. The returned func unsubscribes; the ticker stops
// when the last watcher leaves.
func Watch[T any](s *Scheduler, key Key, interval time.Duration, fetch func(context.Context) (T, error), listener func(T, error)) func() {
	wrapped := func(v any, err error) {
		t, _ := v.(T)
		listener(t, err)
	}
	anyFetch := func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
	return s.subscribe(key, interval, anyFetch, wrapped)
}

func (s *Scheduler) subscribe(key Key, interval time.Duration, fetch func(context.Context) (any, error), fn func(any, error)) func() {
	if interval <= 0 {
		interval = Interval(key.Resource)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	w, ok := s.watches[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		w = &watch{
			key:       key,
			interval:  interval,
			fetch:     fetch,
			ctx:       ctx,
			cancel:    cancel,
			listeners: make(map[int]func(any, error)),
		}
		s.watches[key] = w
	}
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.listeners[id] = fn
	has, last, lastErr := w.has, w.last, w.lastErr
	w.mu.Unlock()
	s.mu.Unlock()

	if !ok {
		log.Debug().Str("key", key.String()).Dur("interval", interval).Msg("poll started")
		go s.run(w)
	} else if has {
		fn(last, lastErr)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(w, id) })
	}
}

func (s *Scheduler) unsubscribe(w *watch, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.mu.Lock()
	delete(w.listeners, id)
	empty := len(w.listeners) == 0
	w.mu.Unlock()
	if empty && s.watches[w.key] == w {
		delete(s.watches, w.key)
		w.cancel()
		log.Debug().Str("key", w.key.String()).Msg("poll stopped")
	}
}

// Refresh fetches key now and delivers the result to its watchers. A fetch
// that was already in flight when Refresh was called may predate a change
// the caller just made, so Refresh waits for it to settle and then fetches
// again.
func (s *Scheduler) Refresh(ctx context.Context, key Key) error {
	s.mu.Lock()
	w, ok := s.watches[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.tick(ctx, w, true)
}

// RefreshResource refreshes every watched key of a resource.
func (s *Scheduler) RefreshResource(ctx context.Context, resource string) error {
	s.mu.Lock()
	var ws []*watch
	for k, w := range s.watches {
		if k.Resource == resource {
			ws = append(ws, w)
		}
	}
	s.mu.Unlock()

	var firstErr error
	for _, w := range ws {
		if err := s.tick(ctx, w, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Watching reports whether key has at least one watcher.
func (s *Scheduler) Watching(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[key]
	return ok
}

// Close stops every watch.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for k, w := range s.watches {
		w.cancel()
		delete(s.watches, k)
	}
}

func (s *Scheduler) run(w *watch) {
	s.tick(w.ctx, w, false) //nolint:errcheck
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-t.C:
			s.tick(w.ctx, w, false) //nolint:errcheck
		}
	}
}

// result is one fetch. gen orders fetches of a key by start time.
type result struct {
	gen uint64
	val any
}

// tick fetches through the key's singleflight group and delivers the result
// unless a newer fetch already delivered or the watch was stopped. Ticks
// join a fetch in flight. With fresh set, a joined fetch is delivered and
// then followed by one that starts after the call.
func (s *Scheduler) tick(ctx context.Context, w *watch, fresh bool) error {
	r, own, err := s.fetch(ctx, w)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if fresh && !own {
		s.deliver(w, r, err)
		if r, _, err = s.fetch(ctx, w); ctx.Err() != nil {
			return ctx.Err()
		}
	}
	s.deliver(w, r, err)
	return err
}

// fetch joins or starts the flight for w's key. own reports whether this
// call started it.
func (s *Scheduler) fetch(ctx context.Context, w *watch) (r result, own bool, err error) {
	var started bool
	ch := s.group.DoChan(w.key.String(), func() (any, error) {
		started = true
		w.mu.Lock()
		w.started++
		gen := w.started
		w.mu.Unlock()

		begin := time.Now()
		v, err := w.fetch(w.ctx)
		if s.opts.OnFetch != nil {
			s.opts.OnFetch(w.key, time.Since(begin), err)
		}
		return result{gen: gen, val: v}, err
	})
	select {
	case <-ctx.Done():
		return result{}, false, ctx.Err()
	case res := <-ch:
		r, _ = res.Val.(result)
		return r, started, res.Err
	}
}

func (s *Scheduler) deliver(w *watch, r result, err error) {
	if w.ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	if r.gen <= w.delivered {
		w.mu.Unlock()
		return
	}
	w.delivered = r.gen
	w.has, w.last, w.lastErr = true, r.val, err
	fns := make([]func(any, error), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	if err != nil {
		log.Debug().Err(err).Str("key", w.key.String()).Msg("poll fetch failed")
	}
	for _, fn := range fns {
		fn(r.val, err)
	}
}
