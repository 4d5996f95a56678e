package api

import (
	"net/http"
	"time"

	"github.com/fossodjateng-gif/afrofood-app/internal/events"
)

// orderEventsHandler streams lifecycle events to a viewer as server-sent
// events. Frames are hints: a client that misses one reconciles by re-fetching
// the order list. The connection closes when the client goes away or the hub
// drops a stalled subscriber.
func (s *Server) orderEventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)

	if !ok {
		s.respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	ticker := time.NewTicker(events.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-sub.Frames():
			if !open {
				return
			}

			if _, err := w.Write(frame); err != nil {
				return
			}

			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write(events.KeepAliveFrame()); err != nil {
				return
			}

			flusher.Flush()
		}
	}
}
