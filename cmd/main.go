package main

import (
  "context"
  "fmt"
  "os"

  "github.com/essayband/essayband-backend/internal/db"
  "github.com/essayband/essayband-backend/internal/feedconfig"
  "github.com/essayband/essayband-backend/internal/handlers"
  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/middleware"
  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/server"
  "github.com/essayband/essayband-backend/internal/services"
  "github.com/essayband/essayband-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  authSecret := utils.GetEnv("AUTH_SECRET_KEY", "defaultsecret", log)
  authRequired := utils.GetEnvAsBool("AUTH_REQUIRED", false, log)
  feedConfigPath := utils.GetEnv("FEED_CONFIG_PATH", "config/feeds.yaml", log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  essayRepo := repos.NewEssayRepo(thePG, log)
  segmentRepo := repos.NewSegmentRepo(thePG, log)
  feedRepo := repos.NewFeedRepo(thePG, log)
  feedbackRepo := repos.NewFeedbackRepo(thePG, log)
  callLogRepo := repos.NewGenerationCallLogRepo(thePG, log)

  // Feed + rubric configuration
  feedCfg, err := feedconfig.Load(feedConfigPath)
  if err != nil {
    log.Error("Could not load feed config", "path", feedConfigPath, "error", err)
    os.Exit(1)
  }
  if err := feedconfig.Seed(context.Background(), feedCfg, feedRepo, log); err != nil {
    log.Error("Could not seed feed table", "error", err)
    os.Exit(1)
  }

  // Services
  log.Info("Setting up Services from main...")
  generationClient, err := services.NewOpenAIGenerationClient(log)
  if err != nil {
    log.Error("Could not init GenerationClient", "error", err)
    os.Exit(1)
  }
  lease, err := services.NewRedisGenerationLease(log)
  if err != nil {
    log.Warn("Generation lease disabled", "error", err)
    lease = services.NewNoopGenerationLease()
  }
  cacheService := services.NewFeedbackCacheService(thePG, log, feedbackRepo, segmentRepo)
  essayService := services.NewEssayService(thePG, log, essayRepo, segmentRepo, feedbackRepo)
  bandScoreService := services.NewBandScoreService(thePG, log, essayRepo, segmentRepo, feedbackRepo, feedCfg.Rubric, nil)
  streamService := services.NewFeedbackStreamService(
    thePG,
    log,
    essayRepo,
    segmentRepo,
    feedRepo,
    feedbackRepo,
    callLogRepo,
    cacheService,
    generationClient,
    lease,
  )

  // Handlers
  log.Info("Setting up handlers from main...")
  essayHandler := handlers.NewEssayHandler(log, essayService, bandScoreService)
  feedbackStreamHandler := handlers.NewFeedbackStreamHandler(log, streamService)

  // Middleware
  authMiddleware := middleware.NewAuthMiddleware(log, authSecret, authRequired)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    EssayHandler:          essayHandler,
    FeedbackStreamHandler: feedbackStreamHandler,
    AuthMiddleware:        authMiddleware,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
