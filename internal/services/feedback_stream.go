package services

import (
  "context"
  "encoding/json"
  "fmt"
  "net/http"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/essayband/essayband-backend/internal/apierr"
  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/sse"
  "github.com/essayband/essayband-backend/internal/types"
)

type sessionState string

const (
  stateInit          sessionState = "init"
  stateResolvingFeed sessionState = "resolving_feeds"
  stateRunningStep   sessionState = "running_step"
  stateEmitting      sessionState = "emitting"
  stateDone          sessionState = "done"
  stateFailed        sessionState = "failed"
)

// contentSteps is the fixed sub-step order for content-scoped feeds.
var contentSteps = []types.StepKind{types.StepKindChainOfThought, types.StepKindScoring, types.StepKindFeedback}

// StepPayload is the wire body of one feedback_step event.
type StepPayload struct {
  FeedID          uuid.UUID            `json:"id"`
  ProcessOrder    int                  `json:"process_order"`
  Title           string               `json:"title"`
  Criteria        string               `json:"criteria"`
  ApplyTo         types.ApplyTo        `json:"apply_to"`
  Source          types.FeedbackSource `json:"source"`
  Cached          bool                 `json:"cached"`
  SegmentID       *uuid.UUID           `json:"segment_id,omitempty"`
  SegmentCount    int                  `json:"segment_count,omitempty"`
  CotContent      string               `json:"cot_content,omitempty"`
  ScoreContent    string               `json:"score_content,omitempty"`
  FeedbackContent string               `json:"feedback_content,omitempty"`
}

// FeedbackStreamService drives one streaming session: it walks the feed list
// in process order, reuses or generates each step's content, persists what
// must be persisted, and emits one event per feed to the sink as it becomes
// ready. Events are never reordered or batched.
type FeedbackStreamService interface {
  Stream(ctx context.Context, essayUUID uuid.UUID, segmentID *uuid.UUID, sink sse.Sink) error
}

type feedbackStreamService struct {
  db          *gorm.DB
  log         *logger.Logger
  essayRepo   repos.EssayRepo
  segmentRepo repos.SegmentRepo
  feedRepo    repos.FeedRepo
  feedback    repos.FeedbackRepo
  callLogRepo repos.GenerationCallLogRepo
  cache       FeedbackCacheService
  generator   GenerationClient
  lease       GenerationLeaseService
}

func NewFeedbackStreamService(
  db *gorm.DB,
  baseLog *logger.Logger,
  essayRepo repos.EssayRepo,
  segmentRepo repos.SegmentRepo,
  feedRepo repos.FeedRepo,
  feedbackRepo repos.FeedbackRepo,
  callLogRepo repos.GenerationCallLogRepo,
  cache FeedbackCacheService,
  generator GenerationClient,
  lease GenerationLeaseService,
) FeedbackStreamService {
  if lease == nil {
    lease = NewNoopGenerationLease()
  }
  return &feedbackStreamService{
    db:          db,
    log:         baseLog.With("service", "FeedbackStreamService"),
    essayRepo:   essayRepo,
    segmentRepo: segmentRepo,
    feedRepo:    feedRepo,
    feedback:    feedbackRepo,
    callLogRepo: callLogRepo,
    cache:       cache,
    generator:   generator,
    lease:       lease,
  }
}

func (s *feedbackStreamService) Stream(ctx context.Context, essayUUID uuid.UUID, segmentID *uuid.UUID, sink sse.Sink) error {
  sessionLog := s.log.With("session_id", uuid.New().String(), "essay_uuid", essayUUID.String())
  sessionLog.Debug("Session state change", "state", stateInit)

  essay, err := s.essayRepo.GetByUUID(ctx, nil, essayUUID)
  if err != nil {
    return s.fail(sink, sessionLog, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not load your essay. Please try again.", err))
  }
  if essay == nil {
    return s.fail(sink, sessionLog, apierr.New(http.StatusNotFound, "Essay not found", "We could not find that essay. It may have been removed.", nil))
  }

  var scoped *types.EssaySegment
  if segmentID != nil {
    scoped, err = s.segmentRepo.GetByID(ctx, nil, *segmentID)
    if err != nil {
      return s.fail(sink, sessionLog, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not load that paragraph. Please try again.", err))
    }
    if scoped == nil || scoped.EssayID != essay.ID {
      return s.fail(sink, sessionLog, apierr.New(http.StatusNotFound, "Paragraph not found", "That paragraph does not belong to this essay.", nil))
    }
  }

  sessionLog.Debug("Session state change", "state", stateResolvingFeed)
  feeds, err := s.feedRepo.ListByEssayType(ctx, nil, essay.Type)
  if err != nil {
    return s.fail(sink, sessionLog, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not load the feedback configuration.", err))
  }
  if len(feeds) == 0 {
    notConfigured := apierr.New(http.StatusUnprocessableEntity, "No feedback configured",
      fmt.Sprintf("No feedback steps are configured for %s essays yet.", essay.Type), nil).
      WithCTA("Configure feedback", "/admin/feeds")
    return s.fail(sink, sessionLog, notConfigured)
  }

  for _, feed := range feeds {
    if err := ctx.Err(); err != nil {
      // Client went away; stop between steps without persisting a partial one.
      sessionLog.Debug("Session context done, stopping", "error", err)
      return err
    }

    scope, ok := feed.ApplyTo.Scope()
    if !ok {
      sessionLog.Warn("Skipping feed with unknown apply_to", "feed_id", feed.ID, "apply_to", feed.ApplyTo)
      continue
    }
    if scoped != nil && (scope.Kind != types.ScopeSegment || scope.Segment != scoped.Type) {
      continue
    }

    sessionLog.Debug("Session state change", "state", stateRunningStep, "process_order", feed.ProcessOrder, "feed_id", feed.ID)

    var payload *StepPayload
    var stepErr *apierr.Error
    switch scope.Kind {
    case types.ScopeParagraph:
      payload, stepErr = s.runParagraphFeed(ctx, sessionLog, essay, feed)
    case types.ScopeEssay:
      payload, stepErr = s.runContentFeed(ctx, sessionLog, essay, feed, nil)
    case types.ScopeSegment:
      target := scoped
      if target == nil {
        target, err = s.firstSegmentOfType(ctx, essay.ID, scope.Segment)
        if err != nil {
          stepErr = apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not load the essay's paragraphs.", err)
          break
        }
      }
      if target == nil {
        // Nothing to attach feedback to yet; segmentation has not produced
        // this segment. Skip rather than error.
        sessionLog.Debug("Skipping segment-scoped feed, no matching segment", "feed_id", feed.ID, "segment_type", scope.Segment)
        continue
      }
      payload, stepErr = s.runContentFeed(ctx, sessionLog, essay, feed, target)
    }

    if stepErr != nil {
      sessionLog.Debug("Session state change", "state", stateFailed)
      return s.fail(sink, sessionLog, stepErr)
    }
    if payload == nil {
      // Silent no-op (cancelled mid-feed, or malformed segmentation output).
      if err := ctx.Err(); err != nil {
        return err
      }
      continue
    }

    sessionLog.Debug("Session state change", "state", stateEmitting, "process_order", feed.ProcessOrder)
    if err := sink.Send(sse.EventFeedbackStep, payload); err != nil {
      sessionLog.Debug("Failed to emit step event, client likely gone", "error", err)
      return err
    }
  }

  sessionLog.Debug("Session state change", "state", stateDone)
  return sink.Done()
}

func (s *feedbackStreamService) fail(sink sse.Sink, sessionLog *logger.Logger, streamErr *apierr.Error) error {
  sessionLog.Warn("Streaming session failed", "title", streamErr.Title, "error", streamErr.Error())
  if err := sink.SendError(sse.EventFeedbackStep, streamErr); err != nil {
    sessionLog.Debug("Failed to emit error event", "error", err)
  }
  return streamErr
}

func (s *feedbackStreamService) firstSegmentOfType(ctx context.Context, essayID uuid.UUID, segmentType types.SegmentType) (*types.EssaySegment, error) {
  segments, err := s.segmentRepo.ListByEssayID(ctx, nil, essayID)
  if err != nil {
    return nil, err
  }
  for _, seg := range segments {
    if seg.Type == segmentType {
      return seg, nil
    }
  }
  return nil, nil
}

// runContentFeed runs the chain-of-thought → scoring → feedback sub-steps for
// an essay- or segment-scoped feed against one feedback record.
func (s *feedbackStreamService) runContentFeed(ctx context.Context, sessionLog *logger.Logger, essay *types.Essay, feed *types.Feed, segment *types.EssaySegment) (*StepPayload, *apierr.Error) {
  targetKind := types.TargetKindEssay
  targetID := essay.ID
  targetText := essay.Text
  if segment != nil {
    targetKind = types.TargetKindSegment
    targetID = segment.ID
    targetText = segment.Content
  }

  payload := s.newPayload(feed)
  if segment != nil {
    segID := segment.ID
    payload.SegmentID = &segID
  }
  payload.Cached = true

  genContext := map[string]string{}
  for _, step := range contentSteps {
    if ctx.Err() != nil {
      return nil, nil
    }

    hit, err := s.cache.Lookup(ctx, step, feed, essay, segment)
    if err != nil {
      return nil, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not check for existing feedback.", err)
    }

    var content string
    if hit != nil {
      content = hit.Content
      if hit.Source == types.FeedbackSourceHuman {
        payload.Source = types.FeedbackSourceHuman
      }
    } else {
      generated, reusedExisting, genErr := s.generateAndPersist(ctx, sessionLog, step, feed, essay, targetKind, targetID, targetText, genContext)
      if genErr != nil {
        return nil, genErr
      }
      if ctx.Err() != nil {
        return nil, nil
      }
      content = generated
      if !reusedExisting {
        payload.Cached = false
      }
    }

    genContext[string(step)] = content
    switch step {
    case types.StepKindChainOfThought:
      payload.CotContent = content
    case types.StepKindScoring:
      payload.ScoreContent = content
    case types.StepKindFeedback:
      payload.FeedbackContent = content
    }
  }
  return payload, nil
}

// generateAndPersist calls the external generation operation and fills the
// record field, deferring to whatever a concurrent writer stored first.
func (s *feedbackStreamService) generateAndPersist(ctx context.Context, sessionLog *logger.Logger, step types.StepKind, feed *types.Feed, essay *types.Essay, targetKind types.TargetKind, targetID uuid.UUID, targetText string, genContext map[string]string) (string, bool, *apierr.Error) {
  leaseKey := fmt.Sprintf("%s:%s:%s:%s", targetKind, targetID, feed.Criteria(), step)
  acquired, err := s.lease.Acquire(ctx, leaseKey, time.Minute)
  if err != nil {
    sessionLog.Debug("Lease acquire failed, proceeding without it", "error", err)
    acquired = true
  }
  if acquired {
    defer s.lease.Release(ctx, leaseKey)
  } else {
    // Another session is generating this step right now. Give the store one
    // more look before paying for a duplicate call.
    record, err := s.feedback.Find(ctx, nil, targetKind, targetID, feed.Criteria(), types.FeedbackSourceAI)
    if err == nil {
      if content := record.Content(step); content != "" {
        return content, true, nil
      }
    }
  }

  text, genErr := s.generate(ctx, sessionLog, step, feed, essay, targetKind, targetID, targetText, genContext)
  if genErr != nil {
    if ctx.Err() != nil {
      return "", false, nil
    }
    return "", false, apierr.New(http.StatusBadGateway, "Feedback generation failed",
      "We could not generate feedback for this step. Please try again in a moment.", genErr).
      WithCTA("Try again", fmt.Sprintf("/essays/%s/feedback", essay.UUID))
  }

  record, skipped, err := s.feedback.FillField(ctx, nil, targetKind, targetID, feed.Criteria(), types.FeedbackSourceAI, step, text)
  if err != nil {
    return "", false, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not save the generated feedback.", err)
  }
  if skipped {
    // A concurrent session won the write; its content is the truth.
    return record.Content(step), true, nil
  }
  return text, false, nil
}

func (s *feedbackStreamService) generate(ctx context.Context, sessionLog *logger.Logger, step types.StepKind, feed *types.Feed, essay *types.Essay, targetKind types.TargetKind, targetID uuid.UUID, targetText string, genContext map[string]string) (string, error) {
  started := time.Now()
  text, err := s.generator.Generate(ctx, GenerationRequest{
    StepKind:   step,
    Feed:       feed,
    EssayType:  essay.Type,
    TargetText: targetText,
    Context:    genContext,
  })
  s.logCall(ctx, sessionLog, essay, feed, step, targetKind, targetID, time.Since(started), err)
  return text, err
}

func (s *feedbackStreamService) logCall(ctx context.Context, sessionLog *logger.Logger, essay *types.Essay, feed *types.Feed, step types.StepKind, targetKind types.TargetKind, targetID uuid.UUID, took time.Duration, callErr error) {
  row := &types.GenerationCallLog{
    ID:         uuid.New(),
    EssayID:    essay.ID,
    StepKind:   step,
    TargetKind: targetKind,
    TargetID:   targetID,
    DurationMs: took.Milliseconds(),
    Success:    callErr == nil,
  }
  if feed != nil {
    feedID := feed.ID
    row.FeedID = &feedID
  }
  if callErr != nil {
    row.Error = callErr.Error()
  }
  if _, err := s.callLogRepo.Create(context.WithoutCancel(ctx), nil, []*types.GenerationCallLog{row}); err != nil {
    sessionLog.Debug("Failed to write generation call log", "error", err)
  }
}

// runParagraphFeed runs segmentation. Chain-of-thought here is transient
// reasoning and is never persisted; the segmentation output becomes segment
// rows exactly once per essay.
func (s *feedbackStreamService) runParagraphFeed(ctx context.Context, sessionLog *logger.Logger, essay *types.Essay, feed *types.Feed) (*StepPayload, *apierr.Error) {
  hit, err := s.cache.Lookup(ctx, types.StepKindFeedback, feed, essay, nil)
  if err != nil {
    return nil, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not check for existing paragraphs.", err)
  }
  if hit != nil && hit.Reused {
    payload := s.newPayload(feed)
    payload.Cached = true
    payload.SegmentCount = hit.SegmentCount
    payload.FeedbackContent = hit.Content
    return payload, nil
  }

  hints := ExtractSegments(essay.Text)
  hintParts := make([]string, 0, len(hints))
  for _, h := range hints {
    hintParts = append(hintParts, h.Title+"\n"+h.Content)
  }
  genContext := map[string]string{"structure-hint": strings.Join(hintParts, "\n\n")}

  cot, genErr := s.generate(ctx, sessionLog, types.StepKindChainOfThought, feed, essay, types.TargetKindEssay, essay.ID, essay.Text, genContext)
  if genErr != nil {
    if ctx.Err() != nil {
      return nil, nil
    }
    return nil, apierr.New(http.StatusBadGateway, "Feedback generation failed",
      "We could not analyze the essay structure. Please try again in a moment.", genErr).
      WithCTA("Try again", fmt.Sprintf("/essays/%s/feedback", essay.UUID))
  }
  genContext[string(types.StepKindChainOfThought)] = cot
  if ctx.Err() != nil {
    return nil, nil
  }

  raw, genErr := s.generate(ctx, sessionLog, types.StepKindFeedback, feed, essay, types.TargetKindEssay, essay.ID, essay.Text, genContext)
  if genErr != nil {
    if ctx.Err() != nil {
      return nil, nil
    }
    return nil, apierr.New(http.StatusBadGateway, "Feedback generation failed",
      "We could not split the essay into paragraphs. Please try again in a moment.", genErr).
      WithCTA("Try again", fmt.Sprintf("/essays/%s/feedback", essay.UUID))
  }

  items, ok := parseSegmentationOutput(raw)
  if !ok {
    // Malformed segmentation output must not corrupt state or block the
    // essay-level steps that follow.
    sessionLog.Warn("Segmentation output did not parse, treating step as no-op", "feed_id", feed.ID)
    return nil, nil
  }

  // Segments may have appeared while we were generating; creation happens at
  // most once per essay.
  existing, err := s.segmentRepo.ListByEssayID(ctx, nil, essay.ID)
  if err != nil {
    return nil, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not load the essay's paragraphs.", err)
  }
  if len(existing) > 0 {
    payload := s.newPayload(feed)
    payload.Cached = true
    payload.SegmentCount = len(existing)
    return payload, nil
  }

  segments := buildSegments(essay.ID, items)
  if _, err := s.segmentRepo.Create(ctx, nil, segments); err != nil {
    return nil, apierr.New(http.StatusInternalServerError, "Something went wrong", "We could not save the essay's paragraphs.", err)
  }

  parts := make([]string, 0, len(segments))
  for _, seg := range segments {
    parts = append(parts, seg.Title+"\n"+seg.Content)
  }
  payload := s.newPayload(feed)
  payload.SegmentCount = len(segments)
  payload.FeedbackContent = strings.Join(parts, "\n\n")
  return payload, nil
}

func (s *feedbackStreamService) newPayload(feed *types.Feed) *StepPayload {
  title := feed.Title
  if title == "" {
    title = feed.Name
  }
  return &StepPayload{
    FeedID:       feed.ID,
    ProcessOrder: feed.ProcessOrder,
    Title:        title,
    Criteria:     feed.Criteria(),
    ApplyTo:      feed.ApplyTo,
    Source:       types.FeedbackSourceAI,
  }
}

type segmentationItem struct {
  Text string `json:"text"`
  Type string `json:"type"`
}

// parseSegmentationOutput expects a JSON list of {text, type} items,
// tolerating markdown code fences around it.
func parseSegmentationOutput(raw string) ([]segmentationItem, bool) {
  trimmed := strings.TrimSpace(raw)
  trimmed = strings.TrimPrefix(trimmed, "```json")
  trimmed = strings.TrimPrefix(trimmed, "```")
  trimmed = strings.TrimSuffix(trimmed, "```")
  trimmed = strings.TrimSpace(trimmed)

  var items []segmentationItem
  if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
    return nil, false
  }
  kept := items[:0]
  for _, item := range items {
    if strings.TrimSpace(item.Text) != "" {
      kept = append(kept, item)
    }
  }
  if len(kept) == 0 {
    return nil, false
  }
  return kept, true
}

func normalizeSegmentType(raw string) types.SegmentType {
  cleaned := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "-")
  if cleaned == "intro" {
    cleaned = "introduction"
  }
  return types.ParseSegmentType(cleaned)
}

func buildSegments(essayID uuid.UUID, items []segmentationItem) []*types.EssaySegment {
  segments := make([]*types.EssaySegment, 0, len(items))
  mainPoints := 0
  for i, item := range items {
    segType := normalizeSegmentType(item.Type)
    var title string
    switch segType {
    case types.SegmentTypeIntroduction:
      title = "Introduction"
    case types.SegmentTypeTopicSentence:
      title = "Topic Sentence"
    case types.SegmentTypeMainPoint:
      mainPoints++
      title = fmt.Sprintf("Main Point %d", mainPoints)
    case types.SegmentTypeConclusion:
      title = "Conclusion"
    default:
      title = "Paragraph"
    }
    segments = append(segments, &types.EssaySegment{
      ID:      uuid.New(),
      EssayID: essayID,
      Type:    segType,
      Title:   title,
      Content: strings.TrimSpace(item.Text),
      Order:   i + 1,
    })
  }
  return segments
}
