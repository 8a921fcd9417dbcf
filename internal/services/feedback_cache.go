package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/types"
)

// CacheHit is previously stored content a step can reuse instead of calling
// generation again.
type CacheHit struct {
  Content      string
  Source       types.FeedbackSource
  Reused       bool
  SegmentCount int
}

// FeedbackCacheService answers "has this step already run for this target?"
// before any generation call. Human-sourced content always wins over AI:
// a human correction must never be silently replaced by a stale AI result.
type FeedbackCacheService interface {
  Lookup(ctx context.Context, step types.StepKind, feed *types.Feed, essay *types.Essay, segment *types.EssaySegment) (*CacheHit, error)
}

type feedbackCacheService struct {
  db           *gorm.DB
  log          *logger.Logger
  feedbackRepo repos.FeedbackRepo
  segmentRepo  repos.SegmentRepo
}

func NewFeedbackCacheService(db *gorm.DB, baseLog *logger.Logger, feedbackRepo repos.FeedbackRepo, segmentRepo repos.SegmentRepo) FeedbackCacheService {
  return &feedbackCacheService{
    db:           db,
    log:          baseLog.With("service", "FeedbackCacheService"),
    feedbackRepo: feedbackRepo,
    segmentRepo:  segmentRepo,
  }
}

func (s *feedbackCacheService) Lookup(ctx context.Context, step types.StepKind, feed *types.Feed, essay *types.Essay, segment *types.EssaySegment) (*CacheHit, error) {
  scope, ok := feed.ApplyTo.Scope()
  if !ok {
    return nil, fmt.Errorf("feed %s has unknown apply_to %q", feed.ID, feed.ApplyTo)
  }

  switch scope.Kind {
  case types.ScopeEssay:
    return s.lookupRecord(ctx, step, feed, types.TargetKindEssay, essay.ID)
  case types.ScopeParagraph:
    return s.lookupSegments(ctx, essay)
  case types.ScopeSegment:
    if segment == nil {
      return nil, nil
    }
    return s.lookupRecord(ctx, step, feed, types.TargetKindSegment, segment.ID)
  default:
    return nil, nil
  }
}

// lookupRecord checks the human record first, then the AI record, returning
// the step's field from the first non-empty one.
func (s *feedbackCacheService) lookupRecord(ctx context.Context, step types.StepKind, feed *types.Feed, targetKind types.TargetKind, targetID uuid.UUID) (*CacheHit, error) {
  for _, source := range []types.FeedbackSource{types.FeedbackSourceHuman, types.FeedbackSourceAI} {
    record, err := s.feedbackRepo.Find(ctx, nil, targetKind, targetID, feed.Criteria(), source)
    if err != nil {
      return nil, err
    }
    if content := record.Content(step); content != "" {
      s.log.Debug("Cache hit for feedback step", "step_kind", step, "criteria", feed.Criteria(), "source", source)
      return &CacheHit{Content: content, Source: source}, nil
    }
  }
  return nil, nil
}

// lookupSegments reports segmentation as already done once any segments
// exist, synthesizing the cached content from the stored rows. This is what
// makes a reconnect skip the expensive AI segmentation call.
func (s *feedbackCacheService) lookupSegments(ctx context.Context, essay *types.Essay) (*CacheHit, error) {
  segments, err := s.segmentRepo.ListByEssayID(ctx, nil, essay.ID)
  if err != nil {
    return nil, err
  }
  if len(segments) == 0 {
    return nil, nil
  }
  parts := make([]string, 0, len(segments))
  for _, seg := range segments {
    parts = append(parts, seg.Title+"\n"+seg.Content)
  }
  return &CacheHit{
    Content:      strings.Join(parts, "\n\n"),
    Source:       types.FeedbackSourceAI,
    Reused:       true,
    SegmentCount: len(segments),
  }, nil
}
