package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/essayband/essayband-backend/internal/apierr"
)

type ErrorEnvelope struct {
  Error *apierr.Error `json:"error"`
}

func RespondError(c *gin.Context, status int, title string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{Error: &apierr.Error{Status: status, Title: title, Message: msg}})
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, gin.H{"data": payload})
}

func RespondCreated(c *gin.Context, payload any) {
  c.JSON(http.StatusCreated, gin.H{"data": payload})
}
