// README: In-process fan-out of request lifecycle events to stream subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/metrics"
)

// Subscriber receives encoded frames. A Send error is terminal: the broker
// drops the subscriber and never calls it again.
type Subscriber interface {
	Send(frame []byte) error
}

// Event is the JSON body of a data frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const TypeConnected = "connected"

// HeartbeatFrame is an SSE comment; it carries no event type.
var HeartbeatFrame = []byte(": ping\n\n")

// Broker is the registry of live subscribers. The zero value is not usable;
// construct it with NewBroker and Close it on shutdown.
type Broker struct {
	mu      sync.RWMutex
	subs    map[Subscriber]struct{}
	closed  bool
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewBroker(log *zap.Logger, m *metrics.Metrics) *Broker {
	return &Broker{subs: make(map[Subscriber]struct{}), log: log, metrics: m}
}

// Subscribe registers s. It reports false after Close.
func (b *Broker) Subscribe(s Subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if _, ok := b.subs[s]; !ok {
		b.subs[s] = struct{}{}
		b.metrics.SubscriberAdded()
	}
	return true
}

// Unsubscribe removes s; removing an unknown subscriber is a no-op.
func (b *Broker) Unsubscribe(s Subscriber) {
	b.remove(s, false)
}

func (b *Broker) remove(s Subscriber, dropped bool) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()
	if ok {
		b.metrics.SubscriberRemoved(dropped)
		if c, isClient := s.(*Client); isClient {
			c.Close()
		}
	}
}

// Len reports the number of registered subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish encodes the event and delivers it to every current subscriber.
func (b *Broker) Publish(eventType string, data any) {
	frame, err := EncodeFrame(eventType, data)
	if err != nil {
		b.log.Error("encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	b.metrics.EventPublished(eventType)
	b.Broadcast(frame)
}

// Broadcast delivers a pre-encoded frame and returns how many subscribers
// accepted it. Subscribers whose Send fails are removed.
func (b *Broker) Broadcast(frame []byte) int {
	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.subs))
	for s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.Send(frame); err != nil {
			b.log.Debug("dropping subscriber", zap.Error(err))
			b.remove(s, true)
			continue
		}
		delivered++
	}
	return delivered
}

// Close removes every subscriber and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[Subscriber]struct{})
	b.mu.Unlock()

	for s := range subs {
		b.metrics.SubscriberRemoved(false)
		if c, ok := s.(*Client); ok {
			c.Close()
		}
	}
}

// EncodeFrame renders one SSE data frame.
func EncodeFrame(eventType string, data any) ([]byte, error) {
	body, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(body)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, body...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// ConnectedFrame is the acknowledgement written when a stream opens.
func ConnectedFrame(now time.Time) []byte {
	frame, _ := EncodeFrame(TypeConnected, map[string]int64{"ts": now.UnixMilli()})
	return frame
}
