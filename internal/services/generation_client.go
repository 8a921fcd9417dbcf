package services

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/types"
)

// GenerationRequest carries everything the external model needs for one
// sub-step. Context holds prior sub-step outputs (chain-of-thought for
// scoring, chain-of-thought plus score for feedback).
type GenerationRequest struct {
  StepKind   types.StepKind
  Feed       *types.Feed
  EssayType  types.EssayType
  TargetText string
  Context    map[string]string
}

// GenerationClient is the opaque collaborator that produces feedback text.
// The pipeline only sequences, caches, and persists around it.
type GenerationClient interface {
  Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type openAIGenerationClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client
  maxRetries int
}

func NewOpenAIGenerationClient(log *logger.Logger) (GenerationClient, error) {
  apiKey := os.Getenv("OPENAI_API_KEY")
  if apiKey == "" {
    return nil, fmt.Errorf("missing OPENAI_API_KEY")
  }

  baseURL := os.Getenv("OPENAI_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.openai.com"
  }

  model := os.Getenv("OPENAI_MODEL")
  if model == "" {
    model = "gpt-4o"
  }

  // Generation calls block for seconds; the session holds the connection
  // open for the whole pipeline, so the per-call timeout stays generous.
  timeoutSec := 180
  if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  maxRetries := 4
  if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
      maxRetries = parsed
    }
  }

  return &openAIGenerationClient{
    log:        log.With("service", "GenerationClient"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    maxRetries: maxRetries,
  }, nil
}

type generationHTTPError struct {
  StatusCode int
  Body       string
}

func (e *generationHTTPError) Error() string {
  return fmt.Sprintf("generation http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
  if err == nil {
    return false
  }
  var netErr net.Error
  if errors.As(err, &netErr) && netErr.Timeout() {
    return true
  }
  var httpErr *generationHTTPError
  if errors.As(err, &httpErr) {
    return isRetryableHTTP(httpErr.StatusCode)
  }
  return false
}

func (c *openAIGenerationClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
  system, user := buildPrompt(req)

  body := map[string]any{
    "model": c.model,
    "messages": []map[string]string{
      {"role": "system", "content": system},
      {"role": "user", "content": user},
    },
  }
  raw, err := json.Marshal(body)
  if err != nil {
    return "", err
  }

  var lastErr error
  for attempt := 0; attempt <= c.maxRetries; attempt++ {
    if err := ctx.Err(); err != nil {
      return "", err
    }
    if attempt > 0 {
      backoff := time.Duration(1<<uint(attempt-1)) * time.Second
      backoff += time.Duration(rand.Intn(500)) * time.Millisecond
      select {
      case <-ctx.Done():
        return "", ctx.Err()
      case <-time.After(backoff):
      }
      c.log.Debug("Retrying generation call", "attempt", attempt, "step_kind", req.StepKind)
    }

    text, err := c.call(ctx, raw)
    if err == nil {
      return text, nil
    }
    lastErr = err
    if !isRetryableErr(err) {
      break
    }
  }
  return "", fmt.Errorf("generation failed for step %s: %w", req.StepKind, lastErr)
}

func (c *openAIGenerationClient) call(ctx context.Context, payload []byte) (string, error) {
  httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
  if err != nil {
    return "", err
  }
  httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
  httpReq.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(httpReq)
  if err != nil {
    return "", err
  }
  defer resp.Body.Close()

  raw, err := io.ReadAll(resp.Body)
  if err != nil {
    return "", err
  }
  if resp.StatusCode != http.StatusOK {
    return "", &generationHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
  }

  var decoded struct {
    Choices []struct {
      Message struct {
        Content string `json:"content"`
      } `json:"message"`
    } `json:"choices"`
  }
  if err := json.Unmarshal(raw, &decoded); err != nil {
    return "", fmt.Errorf("decode generation response: %w", err)
  }
  if len(decoded.Choices) == 0 {
    return "", fmt.Errorf("generation response had no choices")
  }
  return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

func buildPrompt(req GenerationRequest) (string, string) {
  var system strings.Builder
  system.WriteString("You are an essay examiner producing rubric feedback.")
  if req.Feed != nil {
    if req.Feed.Style != "" {
      system.WriteString(" Style: " + req.Feed.Style + ".")
    }
    if req.Feed.Language != "" {
      system.WriteString(" Respond in " + req.Feed.Language + ".")
    }
    if req.Feed.RubricGuide != "" {
      system.WriteString("\nRubric guide:\n" + req.Feed.RubricGuide)
    }
  }

  var user strings.Builder
  criteria := "general"
  if req.Feed != nil {
    criteria = req.Feed.Criteria()
  }
  segmentation := req.Feed != nil && req.Feed.ApplyTo == types.ApplyToParagraph && req.StepKind != types.StepKindChainOfThought
  switch {
  case segmentation:
    user.WriteString(`Split this submission into structural segments. Respond with only a JSON array of {"text","type"} objects, type one of introduction, topic-sentence, main-point, conclusion.` + "\n\n")
  case req.StepKind == types.StepKindChainOfThought:
    fmt.Fprintf(&user, "Reason step by step about the %q criteria for this %s submission.\n\n", criteria, req.EssayType)
  case req.StepKind == types.StepKindScoring:
    fmt.Fprintf(&user, "Give a band score for the %q criteria of this %s submission.\n\n", criteria, req.EssayType)
  case req.StepKind == types.StepKindFeedback:
    fmt.Fprintf(&user, "Write actionable feedback for the %q criteria of this %s submission.\n\n", criteria, req.EssayType)
  }
  for key, val := range req.Context {
    fmt.Fprintf(&user, "%s:\n%s\n\n", key, val)
  }
  user.WriteString("Submission:\n" + req.TargetText)
  return system.String(), user.String()
}
