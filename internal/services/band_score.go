package services

import (
  "context"
  "fmt"
  "math"
  "regexp"
  "strconv"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/feedconfig"
  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/types"
)

type ScoreSelection string

const (
  // ScoreSelectionFinal uses the most recent score per sub-criterion.
  ScoreSelectionFinal ScoreSelection = "final"
  // ScoreSelectionInitial uses the earliest score per sub-criterion.
  ScoreSelectionInitial ScoreSelection = "initial"
)

func ParseScoreSelection(raw string) (ScoreSelection, error) {
  switch ScoreSelection(raw) {
  case ScoreSelectionFinal, "":
    return ScoreSelectionFinal, nil
  case ScoreSelectionInitial:
    return ScoreSelectionInitial, nil
  default:
    return "", fmt.Errorf("unknown score selection %q", raw)
  }
}

type CriterionScore struct {
  Name      string             `json:"name"`
  Band      float64            `json:"band"`
  SubScores map[string]float64 `json:"sub_scores"`
}

type BandScore struct {
  Overall  float64              `json:"overall"`
  Source   types.FeedbackSource `json:"source"`
  Criteria []CriterionScore     `json:"criteria"`
}

// BandFunc turns a criterion's sub-scores into its band. The default is the
// mean rounded to the nearest half band; rubrics with lookup tables can
// inject their own.
type BandFunc func(values []float64) float64

func DefaultBandFunc(values []float64) float64 {
  if len(values) == 0 {
    return 0
  }
  var sum float64
  for _, v := range values {
    sum += v
  }
  return RoundToHalf(sum / float64(len(values)))
}

func RoundToHalf(v float64) float64 {
  return math.Round(v*2) / 2
}

// BandScoreService computes settled overall scores out-of-band from the same
// store the pipeline writes. A score only exists when every configured
// criterion is fully populated; partial coverage yields nil, never a partial
// average.
type BandScoreService interface {
  GetOverallScore(ctx context.Context, essayUUID uuid.UUID, mode ScoreSelection) (*BandScore, error)
}

type bandScoreService struct {
  db           *gorm.DB
  log          *logger.Logger
  essayRepo    repos.EssayRepo
  segmentRepo  repos.SegmentRepo
  feedbackRepo repos.FeedbackRepo
  rubric       []feedconfig.RubricCriterion
  band         BandFunc
}

func NewBandScoreService(db *gorm.DB, baseLog *logger.Logger, essayRepo repos.EssayRepo, segmentRepo repos.SegmentRepo, feedbackRepo repos.FeedbackRepo, rubric []feedconfig.RubricCriterion, band BandFunc) BandScoreService {
  if band == nil {
    band = DefaultBandFunc
  }
  return &bandScoreService{
    db:           db,
    log:          baseLog.With("service", "BandScoreService"),
    essayRepo:    essayRepo,
    segmentRepo:  segmentRepo,
    feedbackRepo: feedbackRepo,
    rubric:       rubric,
    band:         band,
  }
}

var numericScoreRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

func parseScoreContent(content string) (float64, bool) {
  match := numericScoreRe.FindString(content)
  if match == "" {
    return 0, false
  }
  val, err := strconv.ParseFloat(match, 64)
  if err != nil {
    return 0, false
  }
  return val, true
}

func (s *bandScoreService) GetOverallScore(ctx context.Context, essayUUID uuid.UUID, mode ScoreSelection) (*BandScore, error) {
  essay, err := s.essayRepo.GetByUUID(ctx, nil, essayUUID)
  if err != nil {
    return nil, err
  }
  if essay == nil {
    return nil, fmt.Errorf("essay %s not found", essayUUID)
  }
  if len(s.rubric) == 0 {
    s.log.Warn("No rubric criteria configured, overall score undefined")
    return nil, nil
  }

  segments, err := s.segmentRepo.ListByEssayID(ctx, nil, essay.ID)
  if err != nil {
    return nil, err
  }
  segmentIDs := make([]uuid.UUID, 0, len(segments))
  for _, seg := range segments {
    segmentIDs = append(segmentIDs, seg.ID)
  }

  ascending := mode == ScoreSelectionInitial
  humanContributed := false
  criteria := make([]CriterionScore, 0, len(s.rubric))
  bands := make([]float64, 0, len(s.rubric))

  for _, criterion := range s.rubric {
    subScores := make(map[string]float64, len(criterion.FeedNames))
    values := make([]float64, 0, len(criterion.FeedNames))
    for _, feedName := range criterion.FeedNames {
      records, err := s.feedbackRepo.ListByCriteriaForEssay(ctx, nil, essay.ID, segmentIDs, feedName, ascending)
      if err != nil {
        return nil, err
      }
      found := false
      for _, record := range records {
        val, ok := parseScoreContent(record.ScoreContent)
        if !ok {
          continue
        }
        subScores[feedName] = val
        values = append(values, val)
        if record.Source == types.FeedbackSourceHuman {
          humanContributed = true
        }
        found = true
        break
      }
      // A criterion score is only meaningful when fully populated.
      if !found {
        s.log.Debug("Sub-criterion missing a score, overall undefined", "criterion", criterion.Name, "feed_name", feedName)
        return nil, nil
      }
    }
    band := s.band(values)
    bands = append(bands, band)
    criteria = append(criteria, CriterionScore{Name: criterion.Name, Band: band, SubScores: subScores})
  }

  var sum float64
  for _, b := range bands {
    sum += b
  }
  source := types.FeedbackSourceAI
  if humanContributed {
    source = types.FeedbackSourceHuman
  }
  return &BandScore{
    Overall:  RoundToHalf(sum / float64(len(bands))),
    Source:   source,
    Criteria: criteria,
  }, nil
}
