package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/services"
  "github.com/essayband/essayband-backend/internal/types"
)

type EssayHandler struct {
  log       *logger.Logger
  essays    services.EssayService
  bandScore services.BandScoreService
}

func NewEssayHandler(log *logger.Logger, essays services.EssayService, bandScore services.BandScoreService) *EssayHandler {
  return &EssayHandler{
    log:       log.With("handler", "EssayHandler"),
    essays:    essays,
    bandScore: bandScore,
  }
}

// POST /api/essays
func (h *EssayHandler) CreateEssay(c *gin.Context) {
  var body struct {
    Type string `json:"type"`
    Text string `json:"text" binding:"required"`
  }
  if err := c.ShouldBindJSON(&body); err != nil {
    RespondError(c, http.StatusBadRequest, "Invalid request", err)
    return
  }
  essay, err := h.essays.Create(c.Request.Context(), types.ParseEssayType(body.Type), body.Text)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "Could not create essay", err)
    return
  }
  RespondCreated(c, gin.H{"id": essay.ID, "uuid": essay.UUID, "type": essay.Type})
}

// GET /api/essays/:uuid
func (h *EssayHandler) GetEssay(c *gin.Context) {
  essayUUID, ok := parseUUIDParam(c, "uuid")
  if !ok {
    return
  }
  essay, err := h.essays.GetByUUID(c.Request.Context(), essayUUID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "Could not load essay", err)
    return
  }
  if essay == nil {
    RespondError(c, http.StatusNotFound, "Essay not found", fmt.Errorf("essay %s not found", essayUUID))
    return
  }
  RespondOK(c, essay)
}

// GET /api/essays/:uuid/segments
func (h *EssayHandler) ListSegments(c *gin.Context) {
  essayUUID, ok := parseUUIDParam(c, "uuid")
  if !ok {
    return
  }
  segments, err := h.essays.ListSegments(c.Request.Context(), essayUUID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "Could not load segments", err)
    return
  }
  RespondOK(c, segments)
}

// POST /api/essays/:uuid/feedback
func (h *EssayHandler) SubmitHumanFeedback(c *gin.Context) {
  essayUUID, ok := parseUUIDParam(c, "uuid")
  if !ok {
    return
  }
  var body struct {
    SegmentID       *uuid.UUID `json:"segment_id"`
    Criteria        string     `json:"criteria"`
    ScoreContent    string     `json:"score_content"`
    FeedbackContent string     `json:"feedback_content"`
  }
  if err := c.ShouldBindJSON(&body); err != nil {
    RespondError(c, http.StatusBadRequest, "Invalid request", err)
    return
  }
  result, err := h.essays.SubmitHumanFeedback(c.Request.Context(), essayUUID, services.HumanFeedbackInput{
    SegmentID:       body.SegmentID,
    Criteria:        body.Criteria,
    ScoreContent:    body.ScoreContent,
    FeedbackContent: body.FeedbackContent,
  })
  if err != nil {
    RespondError(c, http.StatusBadRequest, "Could not save feedback", err)
    return
  }
  RespondOK(c, result)
}

// GET /api/essays/:uuid/score
func (h *EssayHandler) GetOverallScore(c *gin.Context) {
  essayUUID, ok := parseUUIDParam(c, "uuid")
  if !ok {
    return
  }
  mode, err := services.ParseScoreSelection(c.Query("mode"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "Invalid score mode", err)
    return
  }
  score, err := h.bandScore.GetOverallScore(c.Request.Context(), essayUUID, mode)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "Could not compute score", err)
    return
  }
  // nil means the rubric is not fully scored yet; report that explicitly
  // rather than a partial average.
  RespondOK(c, gin.H{"score": score, "complete": score != nil})
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
  parsed, err := uuid.Parse(c.Param(name))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "Invalid identifier", fmt.Errorf("invalid %s: %w", name, err))
    return uuid.Nil, false
  }
  return parsed, true
}
