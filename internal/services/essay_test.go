package services

import (
  "context"
  "testing"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/types"
)

func newEssayFixture(t *testing.T) (*gorm.DB, EssayService) {
  t.Helper()
  db := newTestDB(t)
  log := newTestLogger(t)
  svc := NewEssayService(db, log,
    repos.NewEssayRepo(db, log),
    repos.NewSegmentRepo(db, log),
    repos.NewFeedbackRepo(db, log))
  return db, svc
}

func TestEssayCreateTrimsAndRejectsEmpty(t *testing.T) {
  _, svc := newEssayFixture(t)
  ctx := context.Background()

  essay, err := svc.Create(ctx, types.EssayTypeTask2, "  some essay text  ")
  if err != nil {
    t.Fatalf("Create: %v", err)
  }
  if essay.Text != "some essay text" {
    t.Fatalf("text = %q, want trimmed", essay.Text)
  }
  if essay.UUID == uuid.Nil || essay.ID == uuid.Nil {
    t.Fatalf("essay identifiers not assigned: %+v", essay)
  }

  if _, err := svc.Create(ctx, types.EssayTypeTask2, "   "); err == nil {
    t.Fatalf("Create accepted whitespace-only text")
  }
}

func TestSubmitHumanFeedbackFillsAndReportsSkipped(t *testing.T) {
  db, svc := newEssayFixture(t)
  ctx := context.Background()
  essay := seedEssay(t, db, types.EssayTypeTask2, "essay body")

  result, err := svc.SubmitHumanFeedback(ctx, essay.UUID, HumanFeedbackInput{
    Criteria:        "grammar-range",
    ScoreContent:    "6.5",
    FeedbackContent: "watch subject-verb agreement",
  })
  if err != nil {
    t.Fatalf("SubmitHumanFeedback: %v", err)
  }
  if result.Record.Source != types.FeedbackSourceHuman {
    t.Fatalf("source = %s, want human", result.Record.Source)
  }
  if len(result.Skipped) != 0 {
    t.Fatalf("skipped = %v, want none on first write", result.Skipped)
  }

  // Populated fields are never overwritten; a second submission reports them.
  second, err := svc.SubmitHumanFeedback(ctx, essay.UUID, HumanFeedbackInput{
    Criteria:     "grammar-range",
    ScoreContent: "9",
  })
  if err != nil {
    t.Fatalf("second SubmitHumanFeedback: %v", err)
  }
  if len(second.Skipped) != 1 || second.Skipped[0] != types.StepKindScoring {
    t.Fatalf("skipped = %v, want [scoring]", second.Skipped)
  }
  if second.Record.ScoreContent != "6.5" {
    t.Fatalf("score = %q, want the original 6.5", second.Record.ScoreContent)
  }
}

func TestSubmitHumanFeedbackValidatesTarget(t *testing.T) {
  db, svc := newEssayFixture(t)
  ctx := context.Background()
  essay := seedEssay(t, db, types.EssayTypeTask2, "essay body")
  other := seedEssay(t, db, types.EssayTypeTask2, "another essay")

  foreign := &types.EssaySegment{ID: uuid.New(), EssayID: other.ID, Type: types.SegmentTypeIntroduction, Title: "Introduction", Content: "intro", Order: 1}
  if err := db.Create(foreign).Error; err != nil {
    t.Fatalf("seed segment: %v", err)
  }

  segID := foreign.ID
  if _, err := svc.SubmitHumanFeedback(ctx, essay.UUID, HumanFeedbackInput{
    SegmentID:    &segID,
    Criteria:     "grammar-range",
    ScoreContent: "6",
  }); err == nil {
    t.Fatalf("accepted a segment belonging to another essay")
  }

  if _, err := svc.SubmitHumanFeedback(ctx, essay.UUID, HumanFeedbackInput{Criteria: "grammar-range"}); err == nil {
    t.Fatalf("accepted a submission with no content")
  }
}
