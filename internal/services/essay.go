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

// HumanFeedbackInput is a reviewer's correction for one criteria. Fields left
// empty are not written; fields already populated for the human record are
// reported back as skipped rather than overwritten.
type HumanFeedbackInput struct {
  SegmentID       *uuid.UUID
  Criteria        string
  ScoreContent    string
  FeedbackContent string
}

type HumanFeedbackResult struct {
  Record  *types.FeedbackRecord `json:"record"`
  Skipped []types.StepKind      `json:"skipped,omitempty"`
}

type EssayService interface {
  Create(ctx context.Context, essayType types.EssayType, text string) (*types.Essay, error)
  GetByUUID(ctx context.Context, essayUUID uuid.UUID) (*types.Essay, error)
  ListSegments(ctx context.Context, essayUUID uuid.UUID) ([]*types.EssaySegment, error)
  SubmitHumanFeedback(ctx context.Context, essayUUID uuid.UUID, input HumanFeedbackInput) (*HumanFeedbackResult, error)
}

type essayService struct {
  db           *gorm.DB
  log          *logger.Logger
  essayRepo    repos.EssayRepo
  segmentRepo  repos.SegmentRepo
  feedbackRepo repos.FeedbackRepo
}

func NewEssayService(db *gorm.DB, baseLog *logger.Logger, essayRepo repos.EssayRepo, segmentRepo repos.SegmentRepo, feedbackRepo repos.FeedbackRepo) EssayService {
  return &essayService{
    db:           db,
    log:          baseLog.With("service", "EssayService"),
    essayRepo:    essayRepo,
    segmentRepo:  segmentRepo,
    feedbackRepo: feedbackRepo,
  }
}

func (s *essayService) Create(ctx context.Context, essayType types.EssayType, text string) (*types.Essay, error) {
  text = strings.TrimSpace(text)
  if text == "" {
    return nil, fmt.Errorf("essay text is required")
  }
  essay := &types.Essay{
    ID:   uuid.New(),
    UUID: uuid.New(),
    Type: essayType,
    Text: text,
  }
  created, err := s.essayRepo.Create(ctx, nil, []*types.Essay{essay})
  if err != nil {
    return nil, fmt.Errorf("create essay: %w", err)
  }
  return created[0], nil
}

func (s *essayService) GetByUUID(ctx context.Context, essayUUID uuid.UUID) (*types.Essay, error) {
  return s.essayRepo.GetByUUID(ctx, nil, essayUUID)
}

func (s *essayService) ListSegments(ctx context.Context, essayUUID uuid.UUID) ([]*types.EssaySegment, error) {
  essay, err := s.essayRepo.GetByUUID(ctx, nil, essayUUID)
  if err != nil {
    return nil, err
  }
  if essay == nil {
    return nil, fmt.Errorf("essay %s not found", essayUUID)
  }
  return s.segmentRepo.ListByEssayID(ctx, nil, essay.ID)
}

// SubmitHumanFeedback stores reviewer content under the human source, which
// from then on takes precedence over AI content in the cache gate.
func (s *essayService) SubmitHumanFeedback(ctx context.Context, essayUUID uuid.UUID, input HumanFeedbackInput) (*HumanFeedbackResult, error) {
  essay, err := s.essayRepo.GetByUUID(ctx, nil, essayUUID)
  if err != nil {
    return nil, err
  }
  if essay == nil {
    return nil, fmt.Errorf("essay %s not found", essayUUID)
  }

  targetKind := types.TargetKindEssay
  targetID := essay.ID
  if input.SegmentID != nil {
    segment, err := s.segmentRepo.GetByID(ctx, nil, *input.SegmentID)
    if err != nil {
      return nil, err
    }
    if segment == nil || segment.EssayID != essay.ID {
      return nil, fmt.Errorf("segment %s not found on essay %s", input.SegmentID, essayUUID)
    }
    targetKind = types.TargetKindSegment
    targetID = segment.ID
  }

  criteria := strings.TrimSpace(input.Criteria)
  if criteria == "" {
    criteria = "general"
  }

  fields := map[types.StepKind]string{
    types.StepKindScoring:  strings.TrimSpace(input.ScoreContent),
    types.StepKindFeedback: strings.TrimSpace(input.FeedbackContent),
  }

  result := &HumanFeedbackResult{}
  wrote := false
  for _, step := range []types.StepKind{types.StepKindScoring, types.StepKindFeedback} {
    content := fields[step]
    if content == "" {
      continue
    }
    record, skipped, err := s.feedbackRepo.FillField(ctx, nil, targetKind, targetID, criteria, types.FeedbackSourceHuman, step, content)
    if err != nil {
      return nil, fmt.Errorf("save human feedback: %w", err)
    }
    result.Record = record
    if skipped {
      result.Skipped = append(result.Skipped, step)
    } else {
      wrote = true
    }
  }
  if result.Record == nil {
    return nil, fmt.Errorf("no feedback content provided")
  }
  if wrote {
    s.log.Info("Human feedback stored", "essay_uuid", essayUUID.String(), "criteria", criteria)
  }
  return result, nil
}
