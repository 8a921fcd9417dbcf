package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// GenerationCallLog records one call to the external generation API. Written
// best-effort; the pipeline never fails because a log row could not be saved.
type GenerationCallLog struct {
  ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  EssayID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"essay_id"`
  FeedID     *uuid.UUID     `gorm:"type:uuid;index" json:"feed_id,omitempty"`
  StepKind   StepKind       `gorm:"column:step_kind;not null" json:"step_kind"`
  TargetKind TargetKind     `gorm:"column:target_kind;not null" json:"target_kind"`
  TargetID   uuid.UUID      `gorm:"type:uuid;not null" json:"target_id"`
  DurationMs int64          `gorm:"column:duration_ms;not null" json:"duration_ms"`
  Success    bool           `gorm:"column:success;not null" json:"success"`
  Error      string         `gorm:"column:error" json:"error,omitempty"`
  Metadata   datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
  CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (GenerationCallLog) TableName() string { return "generation_call_log" }
