package feedconfig

import (
  "context"
  "fmt"
  "os"

  "github.com/google/uuid"
  "gopkg.in/yaml.v3"

  "github.com/essayband/essayband-backend/internal/logger"
  "github.com/essayband/essayband-backend/internal/repos"
  "github.com/essayband/essayband-backend/internal/types"
)

// FeedDef is one configured pipeline step as declared in the YAML file. A
// single definition can fan out to several essay types.
type FeedDef struct {
  Name             string   `yaml:"name"`
  Title            string   `yaml:"title"`
  EssayTypes       []string `yaml:"essay_types"`
  ProcessOrder     int      `yaml:"process_order"`
  ApplyTo          string   `yaml:"apply_to"`
  FeedbackCriteria string   `yaml:"feedback_criteria"`
  Style            string   `yaml:"style"`
  Language         string   `yaml:"language"`
  RubricGuide      string   `yaml:"rubric_guide"`
}

// RubricCriterion groups the feed names (sub-criteria) whose scores roll up
// into one band.
type RubricCriterion struct {
  Name      string   `yaml:"name"`
  FeedNames []string `yaml:"feed_names"`
}

type Config struct {
  Feeds  []FeedDef         `yaml:"feeds"`
  Rubric []RubricCriterion `yaml:"rubric"`
}

func Load(path string) (*Config, error) {
  raw, err := os.ReadFile(path)
  if err != nil {
    return nil, fmt.Errorf("read feed config: %w", err)
  }
  return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
  var cfg Config
  if err := yaml.Unmarshal(raw, &cfg); err != nil {
    return nil, fmt.Errorf("parse feed config: %w", err)
  }
  for i, feed := range cfg.Feeds {
    if feed.Name == "" {
      return nil, fmt.Errorf("feed %d has no name", i)
    }
    if _, ok := types.ApplyTo(feed.ApplyTo).Scope(); !ok {
      return nil, fmt.Errorf("feed %q has unknown apply_to %q", feed.Name, feed.ApplyTo)
    }
  }
  return &cfg, nil
}

// FeedRows expands the definitions into feed table rows.
func (c *Config) FeedRows() []*types.Feed {
  rows := make([]*types.Feed, 0, len(c.Feeds))
  for _, def := range c.Feeds {
    essayTypes := def.EssayTypes
    if len(essayTypes) == 0 {
      essayTypes = []string{string(types.EssayTypeGeneral)}
    }
    criteria := def.FeedbackCriteria
    if criteria == "" {
      criteria = "general"
    }
    for _, et := range essayTypes {
      rows = append(rows, &types.Feed{
        ID:               uuid.New(),
        EssayType:        types.ParseEssayType(et),
        Name:             def.Name,
        Title:            def.Title,
        ProcessOrder:     def.ProcessOrder,
        ApplyTo:          types.ApplyTo(def.ApplyTo),
        FeedbackCriteria: criteria,
        Style:            def.Style,
        Language:         def.Language,
        RubricGuide:      def.RubricGuide,
        Active:           true,
      })
    }
  }
  return rows
}

// Seed populates the feed table from the config when it is empty. Existing
// feeds are never touched; configuration edits after first boot are applied
// through the admin tooling, not re-seeding.
func Seed(ctx context.Context, cfg *Config, feedRepo repos.FeedRepo, log *logger.Logger) error {
  count, err := feedRepo.Count(ctx, nil)
  if err != nil {
    return fmt.Errorf("count feeds: %w", err)
  }
  if count > 0 {
    log.Debug("Feed table already populated, skipping seed", "count", count)
    return nil
  }
  rows := cfg.FeedRows()
  if len(rows) == 0 {
    return nil
  }
  if _, err := feedRepo.Create(ctx, nil, rows); err != nil {
    return fmt.Errorf("seed feeds: %w", err)
  }
  log.Info("Seeded feed table from config", "feeds", len(rows))
  return nil
}
