// Package stream keeps recently produced generation streams resumable.
// A Manager records the event frames of in-flight generations keyed by
// stream id, so a client that reconnects with only the id can replay what
// it missed and follow the remainder live.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/log"
)

var (
	// ErrNotFound indicates an unknown or expired stream id.
	ErrNotFound = errors.New("stream not found")

	// ErrDisabled indicates the manager runs without resumability.
	ErrDisabled = errors.New("stream resumability disabled")
)

// Frame is one recorded event of a generation stream.
type Frame struct {
	Event string
	Data  any
}

// terminal reports whether the frame ends its stream.
func (f Frame) terminal() bool {
	return f.Event == chat.EventFinish || f.Event == chat.EventError
}

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind the live stream is dropped.
const subscriberBuffer = 256

// Config configures a Manager.
type Config struct {
	// BackendURL selects the pub/sub backing. Empty disables resumability
	// for the process lifetime: generations still run as plain one-shot
	// streams.
	BackendURL string

	// Retention is how long a finished stream stays resumable.
	Retention time.Duration

	Logger log.Logger
}

// Manager is the process-scoped registry of resumable streams. It is
// created once at startup and injected where needed.
type Manager struct {
	logger    log.Logger
	retention time.Duration
	enabled   bool

	disabledOnce sync.Once
	janitorOnce  sync.Once
	done         chan struct{}
	wg           sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a Manager. A missing backend is not fatal: the
// manager soft-disables and every Wrap call passes the writer through
// untouched.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 5 * time.Minute
	}
	return &Manager{
		logger:    cfg.Logger,
		retention: cfg.Retention,
		enabled:   cfg.BackendURL != "",
		done:      make(chan struct{}),
		sessions:  make(map[string]*session),
	}, nil
}

// Enabled reports whether streams are resumable in this process.
func (m *Manager) Enabled() bool { return m != nil && m.enabled }

// NewID returns a fresh stream id.
func (m *Manager) NewID() string { return shortuuid.New() }

// Wrap registers id and returns a writer that records every frame while
// forwarding it to w. When the manager is disabled, w comes back
// unchanged and the generation is a plain one-shot stream.
func (m *Manager) Wrap(id string, w chat.EventWriter) chat.EventWriter {
	if !m.Enabled() {
		m.disabledOnce.Do(func() {
			m.logger.Warn("stream backend not configured, resumability disabled")
		})
		return w
	}

	m.janitorOnce.Do(m.startJanitor)

	s := &session{subs: make(map[int]chan Frame), lastActive: time.Now()}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return &recorder{manager: m, id: id, session: s, next: w}
}

// Subscription replays a stream and follows it live.
type Subscription struct {
	// Replay holds every frame recorded before the subscription started.
	Replay []Frame

	// Live delivers frames recorded afterwards. Closed when the stream
	// reaches its terminal frame or the subscription is dropped.
	Live <-chan Frame

	cancel func()
}

// Close detaches the subscription.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Resume looks up id and returns the recorded frames plus a live feed.
// A finished stream returns its full replay with an already-closed feed.
func (m *Manager) Resume(_ context.Context, id string) (*Subscription, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return s.subscribe(), nil
}

// Close stops the janitor and drops every session. Used on shutdown.
func (m *Manager) Close() {
	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.drop()
		delete(m.sessions, id)
	}
}

func (m *Manager) startJanitor() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.retention / 4)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case now := <-ticker.C:
				m.sweep(now)
			}
		}
	}()
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.expired(now, m.retention) {
			s.drop()
			delete(m.sessions, id)
		}
	}
}

// recorder tees frames into the session while forwarding to the live
// client. Recording failures never fail the live stream.
type recorder struct {
	manager *Manager
	id      string
	session *session
	next    chat.EventWriter
}

func (r *recorder) WriteEvent(ctx context.Context, event string, data any) error {
	r.session.publish(Frame{Event: event, Data: data})
	return r.next.WriteEvent(ctx, event, data)
}

// session buffers one stream's frames and fans them out to subscribers.
type session struct {
	mu         sync.Mutex
	frames     []Frame
	subs       map[int]chan Frame
	nextSub    int
	doneAt     time.Time
	lastActive time.Time
}

func (s *session) publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = append(s.frames, f)
	s.lastActive = time.Now()
	for id, ch := range s.subs {
		select {
		case ch <- f:
		default:
			// Subscriber stopped draining. Drop it rather than stall
			// the generation.
			close(ch)
			delete(s.subs, id)
		}
	}

	if f.terminal() {
		s.doneAt = time.Now()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
	}
}

func (s *session) subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	replay := make([]Frame, len(s.frames))
	copy(replay, s.frames)

	ch := make(chan Frame, subscriberBuffer)
	if !s.doneAt.IsZero() {
		close(ch)
		return &Subscription{Replay: replay, Live: ch, cancel: func() {}}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if live, ok := s.subs[id]; ok {
			close(live)
			delete(s.subs, id)
		}
	}
	return &Subscription{Replay: replay, Live: ch, cancel: cancel}
}

// expired reports whether the session can be dropped. Finished streams
// expire a retention window after their terminal frame. A stream that
// stops producing frames without ever reaching a terminal frame (the
// generation aborted mid-write) is treated as abandoned after a full
// retention window of silence, so such sessions cannot accumulate.
func (s *session) expired(now time.Time, retention time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doneAt.IsZero() {
		return now.Sub(s.doneAt) > retention
	}
	return now.Sub(s.lastActive) > retention
}

func (s *session) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
