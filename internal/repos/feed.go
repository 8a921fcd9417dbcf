package repos

import (
  "context"

  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/types"
)

// MaxFeedsPerSession bounds a single streaming session.
const MaxFeedsPerSession = 50

type FeedRepo interface {
  Create(ctx context.Context, tx *gorm.DB, feeds []*types.Feed) ([]*types.Feed, error)
  ListByEssayType(ctx context.Context, tx *gorm.DB, essayType types.EssayType) ([]*types.Feed, error)
  Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type feedRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewFeedRepo(db *gorm.DB, baseLog *logger.Logger) FeedRepo {
  return &feedRepo{db: db, log: baseLog.With("repo", "FeedRepo")}
}

func (r *feedRepo) Create(ctx context.Context, tx *gorm.DB, feeds []*types.Feed) ([]*types.Feed, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(feeds) == 0 {
    return []*types.Feed{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&feeds).Error; err != nil {
    return nil, err
  }
  return feeds, nil
}

func (r *feedRepo) ListByEssayType(ctx context.Context, tx *gorm.DB, essayType types.EssayType) ([]*types.Feed, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var feeds []*types.Feed
  err := transaction.WithContext(ctx).
    Where("essay_type = ? AND active = ?", essayType, true).
    Order("process_order ASC").
    Limit(MaxFeedsPerSession).
    Find(&feeds).Error
  if err != nil {
    return nil, err
  }
  return feeds, nil
}

func (r *feedRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if err := transaction.WithContext(ctx).Model(&types.Feed{}).Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}
