package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
)

func writeEvent(w io.Writer, e event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Kind, data)
	return err
}

// lastEventID parses the Last-Event-ID header, falling back to the
// lastEventId query parameter for clients that cannot set headers.
func lastEventID(r *http.Request) uint64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// handleEvents streams a session's events. Recent events newer than
// Last-Event-ID are replayed first. The stream ends after a terminal event,
// when the client disconnects, or when the client falls too far behind; in
// the last case it can reconnect with Last-Event-ID to catch up.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.CodeInternal, "streaming unsupported")
		return
	}
	if _, err := s.engine.GetState(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	events := make(chan event.Event, s.config.StreamBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	replay, unsubscribe := s.engine.Bus().SubscribeWithReplay(id, func(e event.Event) {
		select {
		case events <- e:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	log := s.logger.WithSession(id)
	log.Debug("event stream attached", "replay", len(replay))

	after := lastEventID(r)
	for _, e := range replay {
		if e.Seq <= after {
			continue
		}
		if err := writeEvent(w, e); err != nil {
			return
		}
		if e.Kind.IsTerminal() {
			flusher.Flush()
			return
		}
		after = e.Seq
	}
	flusher.Flush()

	ticker := time.NewTicker(s.config.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			log.Debug("event stream detached")
			return
		case <-overflow:
			log.Warn("event stream closed: client too slow")
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e := <-events:
			if e.Seq <= after {
				continue
			}
			if err := writeEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
			if e.Kind.IsTerminal() {
				return
			}
		}
	}
}
