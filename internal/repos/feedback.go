package repos

import (
  "context"
  "errors"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/types"
)

type FeedbackRepo interface {
  Find(ctx context.Context, tx *gorm.DB, targetKind types.TargetKind, targetID uuid.UUID, criteria string, source types.FeedbackSource) (*types.FeedbackRecord, error)
  // FillField writes content into the step's field of the (target, criteria,
  // source) record, creating the record if absent. A populated field is left
  // untouched and the stored record is returned with skipped=true.
  FillField(ctx context.Context, tx *gorm.DB, targetKind types.TargetKind, targetID uuid.UUID, criteria string, source types.FeedbackSource, step types.StepKind, content string) (*types.FeedbackRecord, bool, error)
  // ListByCriteriaForEssay returns records matching the criteria whose target
  // is the essay itself or one of its segments, ordered by creation time.
  ListByCriteriaForEssay(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, segmentIDs []uuid.UUID, criteria string, ascending bool) ([]*types.FeedbackRecord, error)
}

type feedbackRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackRepo {
  return &feedbackRepo{db: db, log: baseLog.With("repo", "FeedbackRepo")}
}

func (r *feedbackRepo) Find(ctx context.Context, tx *gorm.DB, targetKind types.TargetKind, targetID uuid.UUID, criteria string, source types.FeedbackSource) (*types.FeedbackRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var record types.FeedbackRecord
  err := transaction.WithContext(ctx).
    Where("target_kind = ? AND target_id = ? AND criteria = ? AND source = ?", targetKind, targetID, criteria, source).
    First(&record).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &record, nil
}

func stepColumn(step types.StepKind) string {
  switch step {
  case types.StepKindChainOfThought:
    return "cot_content"
  case types.StepKindScoring:
    return "score_content"
  case types.StepKindFeedback:
    return "feedback_content"
  default:
    return ""
  }
}

func (r *feedbackRepo) FillField(ctx context.Context, tx *gorm.DB, targetKind types.TargetKind, targetID uuid.UUID, criteria string, source types.FeedbackSource, step types.StepKind, content string) (*types.FeedbackRecord, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  column := stepColumn(step)
  if column == "" {
    return nil, false, fmt.Errorf("unknown step kind %q", step)
  }

  record, err := r.Find(ctx, transaction, targetKind, targetID, criteria, source)
  if err != nil {
    return nil, false, err
  }

  if record == nil {
    fresh := &types.FeedbackRecord{
      ID:         uuid.New(),
      TargetKind: targetKind,
      TargetID:   targetID,
      Criteria:   criteria,
      Source:     source,
    }
    fresh.SetContent(step, content)
    if err := transaction.WithContext(ctx).Create(fresh).Error; err == nil {
      return fresh, false, nil
    }
    // Unique index collision: a concurrent session created the tuple between
    // our read and write. Fall through to the conditional update path.
    record, err = r.Find(ctx, transaction, targetKind, targetID, criteria, source)
    if err != nil {
      return nil, false, err
    }
    if record == nil {
      return nil, false, fmt.Errorf("feedback record create failed and re-read found nothing")
    }
  }

  if record.Content(step) != "" {
    return record, true, nil
  }

  res := transaction.WithContext(ctx).
    Model(&types.FeedbackRecord{}).
    Where("id = ? AND ("+column+" IS NULL OR "+column+" = '')", record.ID).
    Update(column, content)
  if res.Error != nil {
    return nil, false, res.Error
  }
  if res.RowsAffected == 0 {
    // A concurrent writer filled the field first; surface what it stored.
    stored, err := r.Find(ctx, transaction, targetKind, targetID, criteria, source)
    if err != nil {
      return nil, false, err
    }
    if stored == nil {
      return nil, false, fmt.Errorf("feedback record vanished during conditional update")
    }
    return stored, true, nil
  }

  record.SetContent(step, content)
  return record, false, nil
}

func (r *feedbackRepo) ListByCriteriaForEssay(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, segmentIDs []uuid.UUID, criteria string, ascending bool) ([]*types.FeedbackRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  direction := "DESC"
  if ascending {
    direction = "ASC"
  }
  query := transaction.WithContext(ctx).Where("criteria = ?", criteria)
  if len(segmentIDs) > 0 {
    query = query.Where("(target_kind = ? AND target_id = ?) OR (target_kind = ? AND target_id IN ?)",
      types.TargetKindEssay, essayID, types.TargetKindSegment, segmentIDs)
  } else {
    query = query.Where("target_kind = ? AND target_id = ?", types.TargetKindEssay, essayID)
  }
  var records []*types.FeedbackRecord
  if err := query.Order("created_at " + direction).Find(&records).Error; err != nil {
    return nil, err
  }
  return records, nil
}
