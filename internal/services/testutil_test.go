package services

import (
  "context"
  "fmt"
  "strings"
  "sync"
  "testing"

  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/essayband/essayband-backend/internal/apierr"
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

// fakeGenerator returns canned content per step kind and counts every call.
type fakeGenerator struct {
  mu      sync.Mutex
  calls   int
  respond func(req GenerationRequest) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
  f.mu.Lock()
  f.calls++
  f.mu.Unlock()
  if f.respond != nil {
    return f.respond(req)
  }
  switch req.StepKind {
  case types.StepKindChainOfThought:
    return "reasoning about " + req.Feed.Criteria(), nil
  case types.StepKindScoring:
    return "7", nil
  default:
    return "feedback for " + req.Feed.Criteria(), nil
  }
}

func (f *fakeGenerator) callCount() int {
  f.mu.Lock()
  defer f.mu.Unlock()
  return f.calls
}

type recordedEvent struct {
  Name    string
  Payload any
  Err     *apierr.Error
  Done    bool
}

// recordingSink captures emitted events in call order.
type recordingSink struct {
  events []recordedEvent
}

func (r *recordingSink) Send(event string, payload any) error {
  r.events = append(r.events, recordedEvent{Name: event, Payload: payload})
  return nil
}

func (r *recordingSink) SendError(event string, streamErr *apierr.Error) error {
  r.events = append(r.events, recordedEvent{Name: event, Err: streamErr})
  return nil
}

func (r *recordingSink) Done() error {
  r.events = append(r.events, recordedEvent{Done: true})
  return nil
}

func (r *recordingSink) stepPayloads() []*StepPayload {
  var payloads []*StepPayload
  for _, ev := range r.events {
    if ev.Payload != nil {
      payloads = append(payloads, ev.Payload.(*StepPayload))
    }
  }
  return payloads
}
