package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/types"
)

type SegmentRepo interface {
  Create(ctx context.Context, tx *gorm.DB, segments []*types.EssaySegment) ([]*types.EssaySegment, error)
  ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID) ([]*types.EssaySegment, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.EssaySegment, error)
}

type segmentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
  return &segmentRepo{db: db, log: baseLog.With("repo", "SegmentRepo")}
}

func (r *segmentRepo) Create(ctx context.Context, tx *gorm.DB, segments []*types.EssaySegment) ([]*types.EssaySegment, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(segments) == 0 {
    return []*types.EssaySegment{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&segments).Error; err != nil {
    return nil, err
  }
  return segments, nil
}

func (r *segmentRepo) ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID) ([]*types.EssaySegment, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var segments []*types.EssaySegment
  err := transaction.WithContext(ctx).
    Where("essay_id = ?", essayID).
    Order("sort_order ASC").
    Find(&segments).Error
  if err != nil {
    return nil, err
  }
  return segments, nil
}

func (r *segmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.EssaySegment, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var segment types.EssaySegment
  err := transaction.WithContext(ctx).Where("id = ?", id).First(&segment).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &segment, nil
}
