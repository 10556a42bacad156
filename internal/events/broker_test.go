package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bloodlink/internal/metrics"
)

// recorder is a Subscriber that keeps every frame and can be told to fail.
type recorder struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (r *recorder) Send(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broken pipe")
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) frame(i int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[i]
}

func decodeFrame(t *testing.T, frame []byte) Event {
	t.Helper()
	s := string(frame)
	if !strings.HasPrefix(s, "data: ") || !strings.HasSuffix(s, "\n\n") {
		t.Fatalf("malformed frame %q", s)
	}
	var ev Event
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n")), &ev); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return ev
}

func newTestBroker() *Broker {
	return NewBroker(zap.NewNop(), nil)
}

func TestPublish_DeliversToExistingSubscribersOnly(t *testing.T) {
	b := newTestBroker()
	early := &recorder{}
	b.Subscribe(early)

	b.Publish("request.created", map[string]string{"id": "r1"})

	late := &recorder{}
	b.Subscribe(late)

	if early.count() != 1 {
		t.Fatalf("early subscriber got %d frames, want 1", early.count())
	}
	ev := decodeFrame(t, early.frames[0])
	if ev.Type != "request.created" {
		t.Errorf("type = %q", ev.Type)
	}
	data, ok := ev.Data.(map[string]any)
	if !ok || data["id"] != "r1" {
		t.Errorf("data = %#v", ev.Data)
	}
	if late.count() != 0 {
		t.Errorf("late subscriber got %d frames, want 0", late.count())
	}
}

func TestPublish_FailedSubscriberIsDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBroker(zap.NewNop(), metrics.New(reg))
	s := &recorder{fail: true}
	tt := &recorder{}
	b.Subscribe(s)
	b.Subscribe(tt)

	b.Publish("request.updated", 1)
	if tt.count() != 1 {
		t.Fatalf("healthy subscriber got %d frames, want 1", tt.count())
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after drop", b.Len())
	}

	s.mu.Lock()
	s.fail = false
	s.mu.Unlock()
	b.Publish("request.updated", 2)
	if s.count() != 0 {
		t.Errorf("dropped subscriber received %d frames", s.count())
	}
	if tt.count() != 2 {
		t.Errorf("healthy subscriber got %d frames, want 2", tt.count())
	}
}

func TestUnsubscribe(t *testing.T) {
	b := newTestBroker()
	r := &recorder{}
	b.Subscribe(r)
	b.Subscribe(r)
	if b.Len() != 1 {
		t.Fatalf("duplicate subscribe: Len = %d", b.Len())
	}
	b.Unsubscribe(r)
	b.Unsubscribe(r)
	b.Publish("request.created", nil)
	if r.count() != 0 {
		t.Fatalf("unsubscribed recorder got %d frames", r.count())
	}
}

func TestClient_FullBufferFailsSend(t *testing.T) {
	c := NewClient(2)
	if err := c.Send([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.Send([]byte("b")); err != nil {
		t.Fatal(err)
	}
	if err := c.Send([]byte("c")); !errors.Is(err, ErrClientFull) {
		t.Fatalf("expected ErrClientFull, got %v", err)
	}
	c.Close()
	c.Close()
	if err := c.Send([]byte("d")); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
	if got := <-c.Frames(); !bytes.Equal(got, []byte("a")) {
		t.Errorf("queued frame = %q", got)
	}
}

func TestBroker_SlowClientIsDroppedNotBlocking(t *testing.T) {
	b := newTestBroker()
	slow := NewClient(1)
	fast := &recorder{}
	b.Subscribe(slow)
	b.Subscribe(fast)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish("request.updated", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if fast.count() != 5 {
		t.Errorf("fast subscriber got %d frames, want 5", fast.count())
	}
	select {
	case <-slow.Done():
	default:
		t.Error("slow client should be closed after being dropped")
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
}

func TestBroker_CloseRejectsNewSubscribers(t *testing.T) {
	b := newTestBroker()
	c := NewClient(4)
	b.Subscribe(c)
	b.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("client not closed by broker Close")
	}
	if b.Subscribe(&recorder{}) {
		t.Fatal("Subscribe after Close should report false")
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d", b.Len())
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := newTestBroker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r := &recorder{}
			b.Subscribe(r)
			b.Unsubscribe(r)
		}()
		go func(i int) {
			defer wg.Done()
			b.Publish("request.created", i)
		}(i)
	}
	wg.Wait()
	if b.Len() != 0 {
		t.Fatalf("Len = %d, want 0", b.Len())
	}
}

func TestFrames(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	ev := decodeFrame(t, ConnectedFrame(now))
	if ev.Type != TypeConnected {
		t.Errorf("type = %q", ev.Type)
	}
	if data, ok := ev.Data.(map[string]any); !ok || data["ts"] != float64(1700000000123) {
		t.Errorf("data = %#v", ev.Data)
	}
	if string(HeartbeatFrame) != ": ping\n\n" {
		t.Errorf("heartbeat = %q", HeartbeatFrame)
	}
}
