package services

import (
  "context"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/feedconfig"
  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/types"
)

func TestRoundToHalf(t *testing.T) {
  cases := []struct {
    in   float64
    want float64
  }{
    {6.75, 7.0},
    {6.25, 6.5},
    {6.24, 6.0},
    {7.0, 7.0},
    {6.5, 6.5},
  }
  for _, tc := range cases {
    if got := RoundToHalf(tc.in); got != tc.want {
      t.Fatalf("RoundToHalf(%v) = %v, want %v", tc.in, got, tc.want)
    }
  }
}

func seedScore(t *testing.T, db *gorm.DB, essayID uuid.UUID, criteria, score string, source types.FeedbackSource) {
  t.Helper()
  record := &types.FeedbackRecord{
    ID:           uuid.New(),
    TargetKind:   types.TargetKindEssay,
    TargetID:     essayID,
    Criteria:     criteria,
    Source:       source,
    ScoreContent: score,
  }
  if err := db.Create(record).Error; err != nil {
    t.Fatalf("seed score %s: %v", criteria, err)
  }
}

func newBandScoreFixture(t *testing.T, rubric []feedconfig.RubricCriterion) (*gorm.DB, BandScoreService) {
  t.Helper()
  db := newTestDB(t)
  log := newTestLogger(t)
  svc := NewBandScoreService(db, log,
    repos.NewEssayRepo(db, log),
    repos.NewSegmentRepo(db, log),
    repos.NewFeedbackRepo(db, log),
    rubric, nil)
  return db, svc
}

func TestGetOverallScoreRoundsToNearestHalf(t *testing.T) {
  rubric := []feedconfig.RubricCriterion{
    {Name: "task-response", FeedNames: []string{"task-response"}},
    {Name: "coherence-cohesion", FeedNames: []string{"cohesion"}},
    {Name: "lexical-resource", FeedNames: []string{"range-of-vocab"}},
    {Name: "grammar", FeedNames: []string{"grammar-range"}},
  }
  db, svc := newBandScoreFixture(t, rubric)
  essay := seedEssay(t, db, types.EssayTypeTask2, "essay body")

  // Bands 7, 7, 6, 7 → mean 6.75 → overall 7.0.
  seedScore(t, db, essay.ID, "task-response", "7", types.FeedbackSourceAI)
  seedScore(t, db, essay.ID, "cohesion", "Band 7: well organized", types.FeedbackSourceAI)
  seedScore(t, db, essay.ID, "range-of-vocab", "6", types.FeedbackSourceAI)
  seedScore(t, db, essay.ID, "grammar-range", "7", types.FeedbackSourceAI)

  score, err := svc.GetOverallScore(context.Background(), essay.UUID, ScoreSelectionFinal)
  if err != nil {
    t.Fatalf("GetOverallScore: %v", err)
  }
  if score == nil {
    t.Fatalf("score = nil, want a complete score")
  }
  if score.Overall != 7.0 {
    t.Fatalf("Overall = %v, want 7.0", score.Overall)
  }
  if score.Source != types.FeedbackSourceAI {
    t.Fatalf("Source = %v, want ai", score.Source)
  }
  if len(score.Criteria) != 4 {
    t.Fatalf("criteria count = %d, want 4", len(score.Criteria))
  }
}

func TestGetOverallScoreRoundsDownToHalf(t *testing.T) {
  rubric := []feedconfig.RubricCriterion{
    {Name: "task-response", FeedNames: []string{"task-response"}},
    {Name: "grammar", FeedNames: []string{"grammar-range"}},
  }
  db, svc := newBandScoreFixture(t, rubric)
  essay := seedEssay(t, db, types.EssayTypeTask2, "essay body")

  // Bands 6 and 6.5 → mean 6.25 → overall 6.5.
  seedScore(t, db, essay.ID, "task-response", "6", types.FeedbackSourceAI)
  seedScore(t, db, essay.ID, "grammar-range", "6.5", types.FeedbackSourceAI)

  score, err := svc.GetOverallScore(context.Background(), essay.UUID, ScoreSelectionFinal)
  if err != nil {
    t.Fatalf("GetOverallScore: %v", err)
  }
  if score == nil || score.Overall != 6.5 {
    t.Fatalf("score = %+v, want overall 6.5", score)
  }
}

func TestGetOverallScoreNilWhenSubCriterionMissing(t *testing.T) {
  rubric := []feedconfig.RubricCriterion{
    {Name: "lexical-resource", FeedNames: []string{"range-of-vocab", "word-choice"}},
  }
  db, svc := newBandScoreFixture(t, rubric)
  essay := seedEssay(t, db, types.EssayTypeGeneral, "essay body")

  seedScore(t, db, essay.ID, "range-of-vocab", "7", types.FeedbackSourceAI)
  // word-choice never scored.

  score, err := svc.GetOverallScore(context.Background(), essay.UUID, ScoreSelectionFinal)
  if err != nil {
    t.Fatalf("GetOverallScore: %v", err)
  }
  if score != nil {
    t.Fatalf("score = %+v, want nil for partial coverage", score)
  }
}

func TestGetOverallScoreAttributesHumanSource(t *testing.T) {
  rubric := []feedconfig.RubricCriterion{
    {Name: "task-response", FeedNames: []string{"task-response"}},
    {Name: "grammar", FeedNames: []string{"grammar-range"}},
  }
  db, svc := newBandScoreFixture(t, rubric)
  essay := seedEssay(t, db, types.EssayTypeTask1, "essay body")

  seedScore(t, db, essay.ID, "task-response", "7", types.FeedbackSourceAI)
  seedScore(t, db, essay.ID, "grammar-range", "6", types.FeedbackSourceHuman)

  score, err := svc.GetOverallScore(context.Background(), essay.UUID, ScoreSelectionFinal)
  if err != nil {
    t.Fatalf("GetOverallScore: %v", err)
  }
  if score == nil || score.Source != types.FeedbackSourceHuman {
    t.Fatalf("score = %+v, want human-attributed source", score)
  }
}

func TestGetOverallScoreInitialUsesEarliestRecord(t *testing.T) {
  rubric := []feedconfig.RubricCriterion{
    {Name: "grammar", FeedNames: []string{"grammar-range"}},
  }
  db, svc := newBandScoreFixture(t, rubric)
  essay := seedEssay(t, db, types.EssayTypeTask2, "essay body")

  segment := &types.EssaySegment{ID: uuid.New(), EssayID: essay.ID, Type: types.SegmentTypeIntroduction, Title: "Introduction", Content: "intro", Order: 1}
  if err := db.Create(segment).Error; err != nil {
    t.Fatalf("seed segment: %v", err)
  }

  early := &types.FeedbackRecord{ID: uuid.New(), TargetKind: types.TargetKindEssay, TargetID: essay.ID, Criteria: "grammar-range", Source: types.FeedbackSourceAI, ScoreContent: "5"}
  if err := db.Create(early).Error; err != nil {
    t.Fatalf("create early record: %v", err)
  }
  late := &types.FeedbackRecord{ID: uuid.New(), TargetKind: types.TargetKindSegment, TargetID: segment.ID, Criteria: "grammar-range", Source: types.FeedbackSourceAI, ScoreContent: "8"}
  if err := db.Create(late).Error; err != nil {
    t.Fatalf("create late record: %v", err)
  }
  if err := db.Model(late).Update("created_at", early.CreatedAt.Add(time.Second)).Error; err != nil {
    t.Fatalf("bump created_at: %v", err)
  }

  initial, err := svc.GetOverallScore(context.Background(), essay.UUID, ScoreSelectionInitial)
  if err != nil {
    t.Fatalf("GetOverallScore initial: %v", err)
  }
  if initial == nil || initial.Overall != 5 {
    t.Fatalf("initial = %+v, want overall 5", initial)
  }

  final, err := svc.GetOverallScore(context.Background(), essay.UUID, ScoreSelectionFinal)
  if err != nil {
    t.Fatalf("GetOverallScore final: %v", err)
  }
  if final == nil || final.Overall != 8 {
    t.Fatalf("final = %+v, want overall 8", final)
  }
}
