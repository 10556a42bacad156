package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bloodlink/internal/types"
)

func TestRelay_FallsBackToLocalDelivery(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	b := newTestBroker()
	r := &recorder{}
	b.Subscribe(r)

	relay := NewRedisRelay(rdb, "", b, zap.NewNop(), nil)
	relay.Publish("request.created", "x")

	if r.count() != 1 {
		t.Fatalf("local subscriber got %d frames, want 1", r.count())
	}
	if ev := decodeFrame(t, r.frame(0)); ev.Type != "request.created" || ev.Data != "x" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRelay_StoppedRelayDeliversLocally(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	b := newTestBroker()
	r := &recorder{}
	b.Subscribe(r)
	relay := NewRedisRelay(rdb, "", b, zap.NewNop(), nil)

	if err := relay.Run(context.Background()); err == nil {
		t.Fatal("Run against an unreachable server should fail")
	}
	if !relay.stopped.Load() {
		t.Fatal("relay not marked stopped after Run returned")
	}

	relay.Publish("request.updated", "after-stop")
	if r.count() != 1 {
		t.Fatalf("local subscriber got %d frames, want 1", r.count())
	}
	if ev := decodeFrame(t, r.frame(0)); ev.Data != "after-stop" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRelay_RoundTripThroughRedis(t *testing.T) {
	addr := os.Getenv("BLOODLINK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BLOODLINK_TEST_REDIS_ADDR not set; skipping Redis relay test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	channel := "bloodlink:test:" + string(types.NewID())
	b := newTestBroker()
	r := &recorder{}
	b.Subscribe(r)
	relay := NewRedisRelay(rdb, channel, b, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- relay.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for r.count() == 0 && time.Now().Before(deadline) {
		// Publishing before the subscription is live loses the frame, so retry.
		relay.Publish("request.fulfilled", 42)
		time.Sleep(50 * time.Millisecond)
	}
	if r.count() == 0 {
		t.Fatal("no frame relayed through Redis")
	}
	if ev := decodeFrame(t, r.frame(0)); ev.Type != "request.fulfilled" {
		t.Errorf("type = %q", ev.Type)
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Fatalf("Run: %v", err)
	}

	// With the subscription gone, frames must not vanish into Redis.
	before := r.count()
	relay.Publish("request.updated", "local")
	if r.count() != before+1 {
		t.Fatalf("after Run returned: got %d frames, want %d", r.count(), before+1)
	}
}
