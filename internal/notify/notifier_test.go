package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowercasename/eggcms/pkg/types"
)

// hookRecorder is a webhook endpoint that records what it receives.
type hookRecorder struct {
	mu       sync.Mutex
	events   []Event
	received []time.Time
	status   int
}

func (h *hookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ev Event
	_ = json.NewDecoder(r.Body).Decode(&ev)
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.received = append(h.received, time.Now())
	status := h.status
	h.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (h *hookRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func startHook(t *testing.T) (*hookRecorder, *httptest.Server) {
	t.Helper()
	h := &hookRecorder{}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func TestNotifier_DisabledIsNoop(t *testing.T) {
	n := New(types.WebhookConfig{}, zerolog.Nop())
	assert.False(t, n.Enabled())
	n.Notify(context.Background(), Event{Event: EventUpdated, Schema: "post"})
	n.Close()
}

func TestNotifier_ImmediateDispatch(t *testing.T) {
	h, srv := startHook(t)
	var runs atomic.Int32
	run := func(ctx context.Context, command, dir string) (RunResult, error) {
		runs.Add(1)
		assert.Equal(t, "make", command)
		assert.Equal(t, "/srv/site", dir)
		return RunResult{}, nil
	}
	n := New(types.WebhookConfig{URL: srv.URL, Command: "make", CommandDir: "/srv/site"},
		zerolog.Nop(), WithRunFunc(run))
	defer n.Close()

	ev := NewEvent(types.ActionUpdate, "post", "abc", time.Now())
	n.Notify(context.Background(), ev)
	n.Notify(context.Background(), ev)

	// Without a debounce window every call dispatches before returning.
	assert.Equal(t, 2, h.count())
	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, ev, h.events[0])
}

func TestNotifier_Debounce(t *testing.T) {
	h, srv := startHook(t)
	n := New(types.WebhookConfig{URL: srv.URL, Debounce: 50 * time.Millisecond}, zerolog.Nop())
	defer n.Close()

	var last time.Time
	for i, id := range []string{"a", "b", "c"} {
		if i > 0 {
			time.Sleep(10 * time.Millisecond)
		}
		last = time.Now()
		n.Notify(context.Background(), NewEvent(types.ActionUpdate, "post", id, last))
	}
	assert.Equal(t, 0, h.count(), "nothing is dispatched inside the window")

	require.Eventually(t, func() bool { return h.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.events, 1, "a burst coalesces into one dispatch")
	assert.Equal(t, "c", h.events[0].ID, "the most recent event survives")
	assert.GreaterOrEqual(t, h.received[0].Sub(last), 50*time.Millisecond)
}

func TestNotifier_DebounceTriggersBuild(t *testing.T) {
	var runs atomic.Int32
	run := func(ctx context.Context, command, dir string) (RunResult, error) {
		runs.Add(1)
		return RunResult{}, nil
	}
	n := New(types.WebhookConfig{Command: "make", Debounce: 20 * time.Millisecond}, zerolog.Nop(), WithRunFunc(run))

	for i := 0; i < 5; i++ {
		n.Notify(context.Background(), Event{Event: EventUpdated, Schema: "settings"})
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	n.Close()
	assert.Equal(t, int32(1), runs.Load())
}

func TestNotifier_CloseCancelsPending(t *testing.T) {
	h, srv := startHook(t)
	n := New(types.WebhookConfig{URL: srv.URL, Debounce: 30 * time.Millisecond}, zerolog.Nop())

	n.Notify(context.Background(), Event{Event: EventUpdated, Schema: "post"})
	n.Close()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, h.count())
}

func TestWebhookSender_Failures(t *testing.T) {
	h, srv := startHook(t)
	h.status = http.StatusInternalServerError

	s := NewWebhookSender(srv.URL, nil, time.Second, zerolog.Nop())
	err := s.Send(context.Background(), Event{Event: EventDeleted, Schema: "post", ID: "x"})
	assert.Error(t, err)
	assert.Equal(t, 1, h.count(), "failed deliveries are not retried")

	unreachable := NewWebhookSender("http://127.0.0.1:1/hook", nil, time.Second, zerolog.Nop())
	assert.Error(t, unreachable.Send(context.Background(), Event{Event: EventUpdated, Schema: "post"}))
}

func TestNotifier_SinkFailureIsIsolated(t *testing.T) {
	h, srv := startHook(t)
	h.status = http.StatusBadGateway
	var runs atomic.Int32
	run := func(ctx context.Context, command, dir string) (RunResult, error) {
		runs.Add(1)
		return RunResult{ExitCode: 1}, nil
	}
	n := New(types.WebhookConfig{URL: srv.URL, Command: "false"}, zerolog.Nop(), WithRunFunc(run))
	defer n.Close()

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Event{Event: EventUpdated, Schema: "post"})
	})
	assert.Equal(t, 1, h.count())
	assert.Equal(t, int32(1), runs.Load(), "the build still runs after a failed webhook")
}
