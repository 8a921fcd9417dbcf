package services

import (
  "context"
  "strings"
  "testing"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/types"
)

func seedEssay(t *testing.T, db *gorm.DB, essayType types.EssayType, text string) *types.Essay {
  t.Helper()
  essay := &types.Essay{ID: uuid.New(), UUID: uuid.New(), Type: essayType, Text: text}
  if err := db.Create(essay).Error; err != nil {
    t.Fatalf("seed essay: %v", err)
  }
  return essay
}

func TestCacheGateHumanAlwaysWinsOverAI(t *testing.T) {
  db := newTestDB(t)
  log := newTestLogger(t)
  feedbackRepo := repos.NewFeedbackRepo(db, log)
  segmentRepo := repos.NewSegmentRepo(db, log)
  gate := NewFeedbackCacheService(db, log, feedbackRepo, segmentRepo)
  ctx := context.Background()

  essay := seedEssay(t, db, types.EssayTypeGeneral, "essay body")
  feed := &types.Feed{ID: uuid.New(), ApplyTo: types.ApplyToEssay, FeedbackCriteria: "range-of-vocab"}

  // The AI record is newer than the human one; precedence must not depend
  // on recency.
  human := &types.FeedbackRecord{ID: uuid.New(), TargetKind: types.TargetKindEssay, TargetID: essay.ID, Criteria: "range-of-vocab", Source: types.FeedbackSourceHuman, FeedbackContent: "human correction"}
  if err := db.Create(human).Error; err != nil {
    t.Fatalf("create human record: %v", err)
  }
  ai := &types.FeedbackRecord{ID: uuid.New(), TargetKind: types.TargetKindEssay, TargetID: essay.ID, Criteria: "range-of-vocab", Source: types.FeedbackSourceAI, FeedbackContent: "ai text"}
  if err := db.Create(ai).Error; err != nil {
    t.Fatalf("create ai record: %v", err)
  }

  hit, err := gate.Lookup(ctx, types.StepKindFeedback, feed, essay, nil)
  if err != nil {
    t.Fatalf("Lookup: %v", err)
  }
  if hit == nil || hit.Content != "human correction" || hit.Source != types.FeedbackSourceHuman {
    t.Fatalf("hit = %+v, want the human content", hit)
  }
}

func TestCacheGateFallsBackToAI(t *testing.T) {
  db := newTestDB(t)
  log := newTestLogger(t)
  gate := NewFeedbackCacheService(db, log, repos.NewFeedbackRepo(db, log), repos.NewSegmentRepo(db, log))
  ctx := context.Background()

  essay := seedEssay(t, db, types.EssayTypeGeneral, "essay body")
  feed := &types.Feed{ID: uuid.New(), ApplyTo: types.ApplyToEssay, FeedbackCriteria: "cohesion"}

  ai := &types.FeedbackRecord{ID: uuid.New(), TargetKind: types.TargetKindEssay, TargetID: essay.ID, Criteria: "cohesion", Source: types.FeedbackSourceAI, ScoreContent: "6.5"}
  if err := db.Create(ai).Error; err != nil {
    t.Fatalf("create ai record: %v", err)
  }

  hit, err := gate.Lookup(ctx, types.StepKindScoring, feed, essay, nil)
  if err != nil {
    t.Fatalf("Lookup: %v", err)
  }
  if hit == nil || hit.Content != "6.5" || hit.Source != types.FeedbackSourceAI {
    t.Fatalf("hit = %+v, want the ai score", hit)
  }

  // Empty field on the matching record is a miss, not an empty hit.
  miss, err := gate.Lookup(ctx, types.StepKindFeedback, feed, essay, nil)
  if err != nil {
    t.Fatalf("Lookup miss: %v", err)
  }
  if miss != nil {
    t.Fatalf("miss = %+v, want nil", miss)
  }
}

func TestCacheGateParagraphReusesExistingSegments(t *testing.T) {
  db := newTestDB(t)
  log := newTestLogger(t)
  gate := NewFeedbackCacheService(db, log, repos.NewFeedbackRepo(db, log), repos.NewSegmentRepo(db, log))
  ctx := context.Background()

  essay := seedEssay(t, db, types.EssayTypeTask2, "essay body")
  feed := &types.Feed{ID: uuid.New(), ApplyTo: types.ApplyToParagraph}

  miss, err := gate.Lookup(ctx, types.StepKindFeedback, feed, essay, nil)
  if err != nil {
    t.Fatalf("Lookup before segmentation: %v", err)
  }
  if miss != nil {
    t.Fatalf("expected miss before segmentation, got %+v", miss)
  }

  segments := []*types.EssaySegment{
    {ID: uuid.New(), EssayID: essay.ID, Type: types.SegmentTypeIntroduction, Title: "Introduction", Content: "opening", Order: 1},
    {ID: uuid.New(), EssayID: essay.ID, Type: types.SegmentTypeConclusion, Title: "Conclusion", Content: "closing", Order: 2},
  }
  for _, seg := range segments {
    if err := db.Create(seg).Error; err != nil {
      t.Fatalf("create segment: %v", err)
    }
  }

  hit, err := gate.Lookup(ctx, types.StepKindFeedback, feed, essay, nil)
  if err != nil {
    t.Fatalf("Lookup after segmentation: %v", err)
  }
  if hit == nil || !hit.Reused || hit.SegmentCount != 2 {
    t.Fatalf("hit = %+v, want reused with 2 segments", hit)
  }
  if !strings.Contains(hit.Content, "Introduction") || !strings.Contains(hit.Content, "closing") {
    t.Fatalf("synthesized content missing segment parts: %q", hit.Content)
  }
}

func TestCacheGateSegmentScopeKeyedBySegment(t *testing.T) {
  db := newTestDB(t)
  log := newTestLogger(t)
  gate := NewFeedbackCacheService(db, log, repos.NewFeedbackRepo(db, log), repos.NewSegmentRepo(db, log))
  ctx := context.Background()

  essay := seedEssay(t, db, types.EssayTypeTask2, "essay body")
  segment := &types.EssaySegment{ID: uuid.New(), EssayID: essay.ID, Type: types.SegmentTypeIntroduction, Title: "Introduction", Content: "opening", Order: 1}
  if err := db.Create(segment).Error; err != nil {
    t.Fatalf("create segment: %v", err)
  }
  feed := &types.Feed{ID: uuid.New(), ApplyTo: types.ApplyToIntroduction, FeedbackCriteria: "intro-effectiveness"}

  record := &types.FeedbackRecord{ID: uuid.New(), TargetKind: types.TargetKindSegment, TargetID: segment.ID, Criteria: "intro-effectiveness", Source: types.FeedbackSourceAI, FeedbackContent: "solid hook"}
  if err := db.Create(record).Error; err != nil {
    t.Fatalf("create record: %v", err)
  }

  hit, err := gate.Lookup(ctx, types.StepKindFeedback, feed, essay, segment)
  if err != nil {
    t.Fatalf("Lookup: %v", err)
  }
  if hit == nil || hit.Content != "solid hook" {
    t.Fatalf("hit = %+v, want the segment-keyed content", hit)
  }

  // Without a segment there is nothing to look up.
  none, err := gate.Lookup(ctx, types.StepKindFeedback, feed, essay, nil)
  if err != nil {
    t.Fatalf("Lookup without segment: %v", err)
  }
  if none != nil {
    t.Fatalf("expected nil hit without a segment, got %+v", none)
  }
}
