package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/events"
)

func newStreamServer(t *testing.T, heartbeat time.Duration) (*events.Broker, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := events.NewBroker(zap.NewNop(), nil)
	h := NewStreamHandler(b, heartbeat, 8, zap.NewNop())
	r := gin.New()
	r.GET("/stream", h.Stream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(b.Close)
	return b, srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, rd *bufio.Reader) string {
	t.Helper()
	var sb strings.Builder
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if line == "\n" {
			return sb.String()
		}
		sb.WriteString(line)
	}
}

func TestStream_ConnectedThenEventsThenCleanup(t *testing.T) {
	b, srv := newStreamServer(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("cache control = %q", cc)
	}

	rd := bufio.NewReader(resp.Body)
	var ev events.Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(readFrame(t, rd)), "data: ")), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != events.TypeConnected {
		t.Fatalf("first frame type = %q", ev.Type)
	}

	waitFor(t, func() bool { return b.Len() == 1 })
	b.Publish("request.created", map[string]string{"id": "r1"})
	frame := readFrame(t, rd)
	if !strings.Contains(frame, `"type":"request.created"`) {
		t.Errorf("frame = %q", frame)
	}

	cancel()
	waitFor(t, func() bool { return b.Len() == 0 })
}

func TestStream_Heartbeat(t *testing.T) {
	_, srv := newStreamServer(t, 20*time.Millisecond)
	resp, err := http.Get(srv.URL + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	rd := bufio.NewReader(resp.Body)
	readFrame(t, rd)
	if got := readFrame(t, rd); got != ": ping\n" {
		t.Errorf("heartbeat frame = %q", got)
	}
}

// failingWriter accepts the connected frame and fails every later write.
type failingWriter struct {
	*httptest.ResponseRecorder
	mu     sync.Mutex
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.writes > 1 {
		return 0, errors.New("connection reset")
	}
	return w.ResponseRecorder.Write(p)
}

func TestStream_HeartbeatFailureRemovesSubscriber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b := events.NewBroker(zap.NewNop(), nil)
	defer b.Close()
	h := NewStreamHandler(b, 10*time.Millisecond, 8, zap.NewNop())
	r := gin.New()
	r.GET("/stream", h.Stream)

	w := &failingWriter{ResponseRecorder: httptest.NewRecorder()}
	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after a failed heartbeat")
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
}

func TestStream_RejectedAfterBrokerClose(t *testing.T) {
	b, srv := newStreamServer(t, time.Minute)
	b.Close()
	resp, err := http.Get(srv.URL + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestParseFilter(t *testing.T) {
	cases := []struct {
		bg, rh  string
		want    string
		wantErr bool
	}{
		{"", "", "", false},
		{"O", "", "O", false},
		{"o", "-", "O-", false},
		{"AB+", "", "AB+", false},
		{"A ", "", "A+", false},
		{"B", " ", "B+", false},
		{"Z", "", "", true},
		{"A", "x", "", true},
	}
	for _, tc := range cases {
		f, err := parseFilter(tc.bg, tc.rh)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseFilter(%q,%q) expected error", tc.bg, tc.rh)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFilter(%q,%q): %v", tc.bg, tc.rh, err)
			continue
		}
		if got := string(f.Group) + string(f.Rh); got != tc.want {
			t.Errorf("parseFilter(%q,%q) = %q, want %q", tc.bg, tc.rh, got, tc.want)
		}
	}
}
