package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/essayband/essayband-backend/internal/handlers"
  "github.com/essayband/essayband-backend/internal/middleware"
)

type RouterConfig struct {
  EssayHandler          *handlers.EssayHandler
  FeedbackStreamHandler *handlers.FeedbackStreamHandler
  AuthMiddleware        *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  api.Use(cfg.AuthMiddleware.RequireAuth())
  {
    api.POST("/essays", cfg.EssayHandler.CreateEssay)
    api.GET("/essays/:uuid", cfg.EssayHandler.GetEssay)
    api.GET("/essays/:uuid/segments", cfg.EssayHandler.ListSegments)
    api.GET("/essays/:uuid/score", cfg.EssayHandler.GetOverallScore)
    api.POST("/essays/:uuid/feedback", cfg.EssayHandler.SubmitHumanFeedback)
    api.GET("/essays/:uuid/feedback/stream", cfg.FeedbackStreamHandler.StreamFeedback)
  }

  return router
}
