// README: Server-sent events stream of request lifecycle events.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/events"
)

type StreamHandler struct {
	broker    *events.Broker
	heartbeat time.Duration
	buffer    int
	log       *zap.Logger
	now       func() time.Time
}

func NewStreamHandler(broker *events.Broker, heartbeat time.Duration, buffer int, log *zap.Logger) *StreamHandler {
	return &StreamHandler{broker: broker, heartbeat: heartbeat, buffer: buffer, log: log, now: time.Now}
}

// Stream holds the connection open until the client goes away, a write
// fails, or the broker drops the subscriber.
func (h *StreamHandler) Stream(c *gin.Context) {
	client := events.NewClient(h.buffer)
	if !h.broker.Subscribe(client) {
		writeError(c, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer h.broker.Unsubscribe(client)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	write := func(frame []byte) bool {
		if _, err := w.Write(frame); err != nil {
			h.log.Debug("stream write failed", zap.Error(err))
			return false
		}
		w.Flush()
		return true
	}
	if !write(events.ConnectedFrame(h.now())) {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-client.Frames():
			if !write(frame) {
				return
			}
		case <-client.Done():
			return
		case <-ticker.C:
			if !write(events.HeartbeatFrame) {
				return
			}
		}
	}
}
