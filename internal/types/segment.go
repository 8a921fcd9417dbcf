package types

import (
  "time"

  "github.com/google/uuid"
)

type SegmentType string

const (
  SegmentTypeIntroduction  SegmentType = "introduction"
  SegmentTypeTopicSentence SegmentType = "topic-sentence"
  SegmentTypeMainPoint     SegmentType = "main-point"
  SegmentTypeConclusion    SegmentType = "conclusion"
  SegmentTypeUnknown       SegmentType = "unknown"
)

func ParseSegmentType(raw string) SegmentType {
  switch SegmentType(raw) {
  case SegmentTypeIntroduction, SegmentTypeTopicSentence, SegmentTypeMainPoint, SegmentTypeConclusion:
    return SegmentType(raw)
  default:
    return SegmentTypeUnknown
  }
}

// EssaySegment rows are created once by the paragraph-scope step and never
// updated; Order is 1-based and gap-free within an essay.
type EssaySegment struct {
  ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
  EssayID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"essay_id"`
  Essay     *Essay      `gorm:"constraint:OnDelete:CASCADE;foreignKey:EssayID;references:ID" json:"essay,omitempty"`
  Type      SegmentType `gorm:"column:type;not null" json:"type"`
  Title     string      `gorm:"column:title;not null" json:"title"`
  Content   string      `gorm:"column:content;not null" json:"content"`
  Order     int         `gorm:"column:sort_order;not null" json:"order"`
  CreatedAt time.Time   `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time   `gorm:"not null" json:"updated_at"`
}

func (EssaySegment) TableName() string { return "essay_segment" }
