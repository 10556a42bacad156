// README: Redis pub/sub relay so every API instance fans out events from every other.
package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bloodlink/internal/metrics"
)

const DefaultChannel = "bloodlink:request-events"

const relayPublishTimeout = 2 * time.Second

// RedisRelay publishes encoded frames to a Redis channel and delivers frames
// received on that channel to the local broker, including its own.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	broker  *Broker
	log     *zap.Logger
	metrics *metrics.Metrics

	// stopped is set once Run returns; frames are then delivered locally.
	stopped atomic.Bool
}

func NewRedisRelay(rdb *redis.Client, channel string, broker *Broker, log *zap.Logger, m *metrics.Metrics) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel, broker: broker, log: log, metrics: m}
}

// Publish sends the frame through Redis. When Redis is unreachable the frame
// is delivered to local subscribers only.
func (r *RedisRelay) Publish(eventType string, data any) {
	frame, err := EncodeFrame(eventType, data)
	if err != nil {
		r.log.Error("encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	r.metrics.EventPublished(eventType)
	if r.stopped.Load() {
		r.broker.Broadcast(frame)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, frame).Err(); err != nil {
		r.log.Warn("relay publish failed, delivering locally",
			zap.String("type", eventType),
			zap.String("channel", r.channel),
			zap.Error(err),
		)
		r.broker.Broadcast(frame)
	}
}

// Run forwards relayed frames to the broker until ctx is cancelled.
// Once Run returns, Publish bypasses Redis so local streams keep working.
func (r *RedisRelay) Run(ctx context.Context) error {
	defer func() {
		r.stopped.Store(true)
		r.log.Warn("event relay stopped, delivering locally", zap.String("channel", r.channel))
	}()
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("event relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.broker.Broadcast([]byte(msg.Payload))
		}
	}
}
