package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// ApplyTo is the raw scope column on a feed row. Pipeline code never switches
// on the string directly; it goes through Scope so unknown values surface as
// (_, false) instead of silently falling through.
type ApplyTo string

const (
  ApplyToEssay         ApplyTo = "essay"
  ApplyToParagraph     ApplyTo = "paragraph"
  ApplyToIntroduction  ApplyTo = "introduction"
  ApplyToTopicSentence ApplyTo = "topic-sentence"
  ApplyToMainPoint     ApplyTo = "main-point"
  ApplyToConclusion    ApplyTo = "conclusion"
)

type ScopeKind int

const (
  ScopeEssay ScopeKind = iota
  ScopeParagraph
  ScopeSegment
)

type Scope struct {
  Kind    ScopeKind
  Segment SegmentType
}

func (a ApplyTo) Scope() (Scope, bool) {
  switch a {
  case ApplyToEssay:
    return Scope{Kind: ScopeEssay}, true
  case ApplyToParagraph:
    return Scope{Kind: ScopeParagraph}, true
  case ApplyToIntroduction:
    return Scope{Kind: ScopeSegment, Segment: SegmentTypeIntroduction}, true
  case ApplyToTopicSentence:
    return Scope{Kind: ScopeSegment, Segment: SegmentTypeTopicSentence}, true
  case ApplyToMainPoint:
    return Scope{Kind: ScopeSegment, Segment: SegmentTypeMainPoint}, true
  case ApplyToConclusion:
    return Scope{Kind: ScopeSegment, Segment: SegmentTypeConclusion}, true
  default:
    return Scope{}, false
  }
}

// Feed is one configured unit of pipeline work. Feeds are configuration: the
// pipeline consumes them ascending by ProcessOrder and never writes them.
type Feed struct {
  ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  EssayType        EssayType      `gorm:"column:essay_type;not null;index" json:"essay_type"`
  Name             string         `gorm:"column:name;not null" json:"name"`
  Title            string         `gorm:"column:title" json:"title,omitempty"`
  ProcessOrder     int            `gorm:"column:process_order;not null;index" json:"process_order"`
  ApplyTo          ApplyTo        `gorm:"column:apply_to;not null" json:"apply_to"`
  FeedbackCriteria string         `gorm:"column:feedback_criteria;not null;default:general" json:"feedback_criteria"`
  Style            string         `gorm:"column:style" json:"style,omitempty"`
  Language         string         `gorm:"column:language" json:"language,omitempty"`
  RubricGuide      string         `gorm:"column:rubric_guide" json:"rubric_guide,omitempty"`
  Active           bool           `gorm:"column:active;not null;default:true" json:"active"`
  Metadata         datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
  CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (Feed) TableName() string { return "feed" }

func (f *Feed) Criteria() string {
  if f.FeedbackCriteria == "" {
    return "general"
  }
  return f.FeedbackCriteria
}
