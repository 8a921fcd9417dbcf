package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type EssayType string

const (
  EssayTypeTask1   EssayType = "task-1"
  EssayTypeTask2   EssayType = "task-2"
  EssayTypeGeneral EssayType = "general"
)

func ParseEssayType(raw string) EssayType {
  switch EssayType(raw) {
  case EssayTypeTask1, EssayTypeTask2:
    return EssayType(raw)
  default:
    return EssayTypeGeneral
  }
}

// Essay content is immutable once scoring has started; resubmits clone into a
// new row carrying OriginalID back to the source essay.
type Essay struct {
  ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UUID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"uuid"`
  Type       EssayType      `gorm:"column:type;not null;index" json:"type"`
  Text       string         `gorm:"column:text;not null" json:"text"`
  OriginalID *uuid.UUID     `gorm:"type:uuid;index" json:"original_id,omitempty"`
  CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
  DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Essay) TableName() string { return "essay" }
