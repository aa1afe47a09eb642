package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
)

var errStreamingUnsupported = errors.New("response writer does not support streaming")

// eventStream writes server-sent events. Each event carries an increasing id so a client can
// tell where a dropped stream stopped.
type eventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// openEventStream sends the stream headers and flushes them before any event is written.
func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, nil
}

// Send writes one event with a JSON payload.
func (s *eventStream) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++

	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.Itoa(s.seq))
	buf.WriteString("\nevent: ")
	buf.WriteString(event)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Fail ends the stream with an error event.
func (s *eventStream) Fail(message string) error {
	return s.Send("error", map[string]string{"error": message})
}

// Done ends the stream with the run's terminal status.
func (s *eventStream) Done(runID, status string) error {
	return s.Send("complete", map[string]string{"run_id": runID, "status": status})
}
