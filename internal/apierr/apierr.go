package apierr

import "fmt"

// Error is a user-visible failure. Title and Message are rendered directly by
// the client; CTATitle/CTALink, when set, describe a recovery action (for
// example a link to the rubric configuration page).
type Error struct {
  Status   int    `json:"-"`
  Title    string `json:"title"`
  Message  string `json:"message"`
  CTATitle string `json:"ctaTitle,omitempty"`
  CTALink  string `json:"ctaLink,omitempty"`
  Err      error  `json:"-"`
}

func (e *Error) Error() string {
  if e == nil {
    return ""
  }
  if e.Err != nil {
    return e.Err.Error()
  }
  if e.Message != "" {
    return e.Message
  }
  if e.Status != 0 {
    return fmt.Sprintf("api error (%d)", e.Status)
  }
  return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, title, message string, err error) *Error {
  return &Error{Status: status, Title: title, Message: message, Err: err}
}

func (e *Error) WithCTA(title, link string) *Error {
  e.CTATitle = title
  e.CTALink = link
  return e
}
