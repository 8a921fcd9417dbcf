package types

import (
  "time"

  "github.com/google/uuid"
)

type FeedbackSource string

const (
  FeedbackSourceAI    FeedbackSource = "ai"
  FeedbackSourceHuman FeedbackSource = "human"
)

type TargetKind string

const (
  TargetKindEssay   TargetKind = "essay"
  TargetKindSegment TargetKind = "segment"
)

// StepKind names the sub-step of a feed run; each maps to exactly one content
// field on the feedback record for that feed's criteria.
type StepKind string

const (
  StepKindChainOfThought StepKind = "chain-of-thought"
  StepKindScoring        StepKind = "scoring"
  StepKindFeedback       StepKind = "feedback"
)

// FeedbackRecord holds the persisted output of one (target, criteria, source)
// tuple. The three content fields fill incrementally as sub-steps run; a
// populated field is never overwritten.
type FeedbackRecord struct {
  ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  TargetKind      TargetKind     `gorm:"column:target_kind;not null;uniqueIndex:idx_feedback_tuple" json:"target_kind"`
  TargetID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_feedback_tuple" json:"target_id"`
  Criteria        string         `gorm:"column:criteria;not null;uniqueIndex:idx_feedback_tuple" json:"criteria"`
  Source          FeedbackSource `gorm:"column:source;not null;uniqueIndex:idx_feedback_tuple" json:"source"`
  CotContent      string         `gorm:"column:cot_content" json:"cot_content,omitempty"`
  ScoreContent    string         `gorm:"column:score_content" json:"score_content,omitempty"`
  FeedbackContent string         `gorm:"column:feedback_content" json:"feedback_content,omitempty"`
  CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (FeedbackRecord) TableName() string { return "feedback_record" }

func (r *FeedbackRecord) Content(step StepKind) string {
  if r == nil {
    return ""
  }
  switch step {
  case StepKindChainOfThought:
    return r.CotContent
  case StepKindScoring:
    return r.ScoreContent
  case StepKindFeedback:
    return r.FeedbackContent
  default:
    return ""
  }
}

func (r *FeedbackRecord) SetContent(step StepKind, content string) {
  switch step {
  case StepKindChainOfThought:
    r.CotContent = content
  case StepKindScoring:
    r.ScoreContent = content
  case StepKindFeedback:
    r.FeedbackContent = content
  }
}
