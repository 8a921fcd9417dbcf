package repos

import (
  "fmt"
  "strings"
  "testing"

  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
  t.Helper()
  name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
  dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
  db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }
  if err := db.AutoMigrate(
    &types.Essay{},
    &types.EssaySegment{},
    &types.Feed{},
    &types.FeedbackRecord{},
    &types.GenerationCallLog{},
  ); err != nil {
    t.Fatalf("migrate: %v", err)
  }
  return db
}

func newTestLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("init logger: %v", err)
  }
  return log
}
