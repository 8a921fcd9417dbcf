package services

import (
  "regexp"
  "strings"
)

// ExtractedSegment is one titled structural block of a submission.
type ExtractedSegment struct {
  Title   string
  Content string
}

var (
  segmentLabelRe = regexp.MustCompile(`(?im)^[#*>\-\s]*(introduction|conclusion|topic sentence|main point\s*\d*|body paragraph\s*\d*)\b\s*[:.\-]*\s*`)
  listMarkerRe   = regexp.MustCompile(`^\s*(?:[-*+>•]+|\d+[.)]|#+)\s*`)
  sentenceEndRe  = regexp.MustCompile(`[.!?]["')\]]*\s*$`)
)

// ExtractSegments splits raw text on structural labels (Introduction, Topic
// Sentence, Main Point <n>, Conclusion, Body Paragraph <n>). It never fails:
// unlabeled input collapses to exactly one segment.
func ExtractSegments(raw string) []ExtractedSegment {
  text := strings.ReplaceAll(raw, "\r\n", "\n")

  matches := segmentLabelRe.FindAllStringSubmatchIndex(text, -1)
  if len(matches) == 0 {
    return []ExtractedSegment{fallbackSegment(text)}
  }

  segments := make([]ExtractedSegment, 0, len(matches))
  for i, m := range matches {
    title := canonicalLabel(text[m[2]:m[3]])
    end := len(text)
    if i+1 < len(matches) {
      end = matches[i+1][0]
    }
    content := cleanBlock(text[m[1]:end])
    segments = append(segments, ExtractedSegment{Title: title, Content: content})
  }
  return segments
}

// fallbackSegment treats the whole input as one segment. A short first line
// that does not end a sentence is taken as the title.
func fallbackSegment(text string) ExtractedSegment {
  trimmed := strings.TrimSpace(text)
  firstLine := trimmed
  rest := ""
  if idx := strings.Index(trimmed, "\n"); idx >= 0 {
    firstLine = strings.TrimSpace(trimmed[:idx])
    rest = strings.TrimSpace(trimmed[idx+1:])
  }
  if rest != "" && len(firstLine) < 100 && !sentenceEndRe.MatchString(firstLine) {
    return ExtractedSegment{Title: firstLine, Content: cleanBlock(rest)}
  }
  return ExtractedSegment{Title: "Paragraph", Content: cleanBlock(trimmed)}
}

func cleanBlock(block string) string {
  lines := strings.Split(block, "\n")
  cleaned := make([]string, 0, len(lines))
  for _, line := range lines {
    line = listMarkerRe.ReplaceAllString(line, "")
    line = strings.TrimSpace(line)
    if line != "" {
      cleaned = append(cleaned, line)
    }
  }
  return strings.Join(cleaned, "\n")
}

func canonicalLabel(label string) string {
  fields := strings.Fields(strings.ToLower(strings.TrimSpace(label)))
  for i, f := range fields {
    if f[0] >= 'a' && f[0] <= 'z' {
      fields[i] = strings.ToUpper(f[:1]) + f[1:]
    }
  }
  return strings.Join(fields, " ")
}
