package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/types"
)

type EssayRepo interface {
  Create(ctx context.Context, tx *gorm.DB, essays []*types.Essay) ([]*types.Essay, error)
  GetByUUID(ctx context.Context, tx *gorm.DB, essayUUID uuid.UUID) (*types.Essay, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Essay, error)
}

type essayRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewEssayRepo(db *gorm.DB, baseLog *logger.Logger) EssayRepo {
  return &essayRepo{db: db, log: baseLog.With("repo", "EssayRepo")}
}

func (r *essayRepo) Create(ctx context.Context, tx *gorm.DB, essays []*types.Essay) ([]*types.Essay, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(essays) == 0 {
    return []*types.Essay{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&essays).Error; err != nil {
    return nil, err
  }
  return essays, nil
}

func (r *essayRepo) GetByUUID(ctx context.Context, tx *gorm.DB, essayUUID uuid.UUID) (*types.Essay, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var essay types.Essay
  err := transaction.WithContext(ctx).Where("uuid = ?", essayUUID).First(&essay).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &essay, nil
}

func (r *essayRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Essay, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var essay types.Essay
  err := transaction.WithContext(ctx).Where("id = ?", id).First(&essay).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &essay, nil
}
