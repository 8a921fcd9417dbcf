package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/services"
  "github.com/essayband/essayband-backend/internal/sse"
)

type FeedbackStreamHandler struct {
  log    *logger.Logger
  stream services.FeedbackStreamService
}

func NewFeedbackStreamHandler(log *logger.Logger, stream services.FeedbackStreamService) *FeedbackStreamHandler {
  return &FeedbackStreamHandler{
    log:    log.With("handler", "FeedbackStreamHandler"),
    stream: stream,
  }
}

// GET /api/essays/:uuid/feedback/stream
//
// Holds the connection open for the whole pipeline and pushes one
// feedback_step event per feed, terminated by END / [DONE]. An optional
// ?segment=<uuid> restricts the session to feeds targeting that segment.
func (h *FeedbackStreamHandler) StreamFeedback(c *gin.Context) {
  essayUUID, ok := parseUUIDParam(c, "uuid")
  if !ok {
    return
  }

  var segmentID *uuid.UUID
  if raw := c.Query("segment"); raw != "" {
    parsed, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "Invalid segment identifier", err)
      return
    }
    segmentID = &parsed
  }

  stream, err := sse.NewStream(c.Writer, h.log)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "Streaming unsupported", err)
    return
  }

  if err := h.stream.Stream(c.Request.Context(), essayUUID, segmentID, stream); err != nil {
    // The failure was already reported on the stream; nothing more can be
    // written to this connection.
    h.log.Debug("Streaming session ended with error", "essay_uuid", essayUUID.String(), "error", err)
  }
}
