package repos

import (
  "context"

  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/types"
)

type GenerationCallLogRepo interface {
  Create(ctx context.Context, tx *gorm.DB, logs []*types.GenerationCallLog) ([]*types.GenerationCallLog, error)
}

type generationCallLogRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewGenerationCallLogRepo(db *gorm.DB, baseLog *logger.Logger) GenerationCallLogRepo {
  return &generationCallLogRepo{db: db, log: baseLog.With("repo", "GenerationCallLogRepo")}
}

func (r *generationCallLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.GenerationCallLog) ([]*types.GenerationCallLog, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(logs) == 0 {
    return []*types.GenerationCallLog{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&logs).Error; err != nil {
    return nil, err
  }
  return logs, nil
}
