package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nopWriter struct {
	frames []Frame
}

func (w *nopWriter) WriteEvent(_ context.Context, event string, data any) error {
	w.frames = append(w.frames, Frame{Event: event, Data: data})
	return nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		BackendURL: "memory://local",
		Retention:  time.Minute,
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestDisabledManagerPassesWriterThrough(t *testing.T) {
	m, err := NewManager(Config{Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	defer m.Close()

	if m.Enabled() {
		t.Fatal("manager without backend must be disabled")
	}

	w := &nopWriter{}
	if got := m.Wrap("abc", w); got != chat.EventWriter(w) {
		t.Error("disabled Wrap must return the original writer")
	}
	if _, err := m.Resume(context.Background(), "abc"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Resume() error = %v, want ErrDisabled", err)
	}
}

func TestResumeReplaysAndFollowsLive(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id := m.NewID()
	live := &nopWriter{}
	w := m.Wrap(id, live)

	mustWrite := func(event string, data any) {
		t.Helper()
		if err := w.WriteEvent(ctx, event, data); err != nil {
			t.Fatalf("WriteEvent(%s) error: %v", event, err)
		}
	}

	mustWrite(chat.EventTextDelta, chat.TextDelta{Delta: "Hello "})
	mustWrite(chat.EventTextDelta, chat.TextDelta{Delta: "world"})

	sub, err := m.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	defer sub.Close()

	if len(sub.Replay) != 2 {
		t.Fatalf("replay length = %d, want 2", len(sub.Replay))
	}
	if sub.Replay[0].Data.(chat.TextDelta).Delta != "Hello " {
		t.Errorf("replay[0] = %+v", sub.Replay[0])
	}

	mustWrite(chat.EventTextDelta, chat.TextDelta{Delta: "!"})
	mustWrite(chat.EventFinish, struct{}{})

	var got []Frame
	for f := range sub.Live {
		got = append(got, f)
	}
	if len(got) != 2 {
		t.Fatalf("live frames = %d, want 2 (delta + finish)", len(got))
	}
	if got[1].Event != chat.EventFinish {
		t.Errorf("last live frame = %q, want finish", got[1].Event)
	}

	// Frames also reached the original client.
	if len(live.frames) != 4 {
		t.Errorf("forwarded frames = %d, want 4", len(live.frames))
	}
}

func TestResumeAfterFinishReturnsFullReplay(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id := m.NewID()
	w := m.Wrap(id, &nopWriter{})
	_ = w.WriteEvent(ctx, chat.EventTextDelta, chat.TextDelta{Delta: "done"})
	_ = w.WriteEvent(ctx, chat.EventFinish, struct{}{})

	sub, err := m.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	defer sub.Close()

	if len(sub.Replay) != 2 {
		t.Fatalf("replay length = %d, want 2", len(sub.Replay))
	}
	if _, open := <-sub.Live; open {
		t.Error("live channel of a finished stream must be closed")
	}
}

func TestResumeUnknownStream(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Resume(context.Background(), "no-such-stream")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resume() error = %v, want ErrNotFound", err)
	}
}

func TestErrorFrameIsTerminal(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id := m.NewID()
	w := m.Wrap(id, &nopWriter{})

	sub, err := m.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	defer sub.Close()

	_ = w.WriteEvent(ctx, chat.EventError, chat.ErrorEvent{Message: "nope"})

	f, open := <-sub.Live
	if !open || f.Event != chat.EventError {
		t.Fatalf("live frame = %+v open=%v", f, open)
	}
	if _, open := <-sub.Live; open {
		t.Error("live channel must close after the error frame")
	}
}

func TestSweepDropsExpiredStreams(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	finished := m.NewID()
	w := m.Wrap(finished, &nopWriter{})
	_ = w.WriteEvent(ctx, chat.EventFinish, struct{}{})

	// No terminal frame and then silence: the generation died mid-write.
	abandoned := m.NewID()
	aw := m.Wrap(abandoned, &nopWriter{})
	_ = aw.WriteEvent(ctx, chat.EventTextDelta, chat.TextDelta{Delta: "partial"})

	active := m.NewID()
	_ = m.Wrap(active, &nopWriter{})

	sweepAt := time.Now().Add(2 * time.Minute)

	// The active stream produced a frame just before the sweep runs.
	m.mu.Lock()
	m.sessions[active].lastActive = sweepAt.Add(-time.Second)
	m.mu.Unlock()

	m.sweep(sweepAt)

	if _, err := m.Resume(ctx, finished); !errors.Is(err, ErrNotFound) {
		t.Errorf("finished stream should have expired, got %v", err)
	}
	if _, err := m.Resume(ctx, abandoned); !errors.Is(err, ErrNotFound) {
		t.Errorf("stream without a terminal frame must expire after a silent retention window, got %v", err)
	}
	if _, err := m.Resume(ctx, active); err != nil {
		t.Errorf("recently active stream must survive the sweep, got %v", err)
	}
}
