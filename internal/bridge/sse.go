// ABOUTME: Server-sent events feed streaming store changes to clients
// ABOUTME: Subscribes to the change bus and writes change/heartbeat frames

package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval paces SSE comment frames so idle connections are not
// reaped by intermediaries.
const heartbeatInterval = 15 * time.Second

// handleEvents handles GET /api/events requests. It streams every store
// change as an SSE "change" event until the client disconnects. A store
// query parameter narrows the feed to one store's topic.
func (b *Bridge) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		b.logger.Error("streaming not supported")
		b.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	topic := r.URL.Query().Get("store")
	if topic == "" {
		topic = "*"
	}

	changes, subID := b.events.Subscribe(r.Context(), topic)
	b.logger.Debug("event stream opened", "topic", topic, "sub_id", subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Initial comment confirms the stream before any change arrives.
	fmt.Fprintf(w, ": connected %s\n\n", subID)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			b.logger.Debug("event stream closed", "sub_id", subID)
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case change, ok := <-changes:
			if !ok {
				return
			}
			b.writeSSEEvent(w, "change", change)
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (b *Bridge) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
