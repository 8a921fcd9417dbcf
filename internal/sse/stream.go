package sse

import (
  "encoding/json"
  "fmt"
  "net/http"

  "github.com/essayband/essayband-backend/internal/apierr"
  "github.com/essayband/essayband-backend/internal/logger"
)

const (
  EventFeedbackStep = "feedback_step"
  EventEnd          = "END"
)

// DoneSentinel terminates a stream. It is written verbatim, not as JSON, so
// clients can detect end-of-stream without parsing.
const DoneSentinel = "[DONE]"

type Envelope struct {
  Data  any           `json:"data,omitempty"`
  Error *apierr.Error `json:"error,omitempty"`
}

// Sink receives ordered pipeline events. Each call must deliver immediately;
// no event may be buffered, retracted, or replaced once accepted.
type Sink interface {
  Send(event string, payload any) error
  SendError(event string, streamErr *apierr.Error) error
  Done() error
}

// Stream is a session-scoped SSE handle over one client connection.
type Stream struct {
  w       http.ResponseWriter
  flusher http.Flusher
  log     *logger.Logger
}

func NewStream(w http.ResponseWriter, log *logger.Logger) (*Stream, error) {
  flusher, ok := w.(http.Flusher)
  if !ok {
    return nil, fmt.Errorf("response writer does not support streaming")
  }
  w.Header().Set("Content-Type", "text/event-stream")
  w.Header().Set("Cache-Control", "no-cache")
  w.Header().Set("Connection", "keep-alive")
  w.Header().Set("X-Accel-Buffering", "no")
  w.WriteHeader(http.StatusOK)
  flusher.Flush()
  return &Stream{w: w, flusher: flusher, log: log.With("component", "SSEStream")}, nil
}

func (s *Stream) Send(event string, payload any) error {
  return s.write(event, Envelope{Data: payload})
}

func (s *Stream) SendError(event string, streamErr *apierr.Error) error {
  return s.write(event, Envelope{Error: streamErr})
}

func (s *Stream) Done() error {
  if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", EventEnd, DoneSentinel); err != nil {
    return err
  }
  s.flusher.Flush()
  return nil
}

func (s *Stream) write(event string, envelope Envelope) error {
  raw, err := json.Marshal(envelope)
  if err != nil {
    s.log.Warn("Failed to marshal SSE envelope", "event", event, "error", err)
    return err
  }
  if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, string(raw)); err != nil {
    return err
  }
  s.flusher.Flush()
  return nil
}
