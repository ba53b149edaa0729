package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// sseKeepAlive is how often an idle stream gets a comment line, so proxies
// do not drop it between interrupts.
const sseKeepAlive = 15 * time.Second

// sseEvents streams "status" events. Clients receive the current status
// immediately, then one event per handled interrupt.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)
	slog.Debug("api: sse subscriber connected", "id", id)

	sendSSE(w, flusher, "status", h.dev.Status())

	ping := time.NewTicker(sseKeepAlive)
	defer ping.Stop()
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, "status", st)
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Debug("api: sse subscriber gone", "id", id)
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
