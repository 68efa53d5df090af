package models

import (
	"time"
)

// SessionState is the lifecycle state of a conversation.
type SessionState string

const (
	StateIdle                   SessionState = "idle"
	StateWaitingSurveySelection SessionState = "waiting_survey_selection"
	StateInSurvey               SessionState = "in_survey"
	StateAnsweringQuestion      SessionState = "answering_question"
	StateResponseComplete       SessionState = "response_complete"
	StateSessionExpired         SessionState = "session_expired"
	StateCancelled              SessionState = "cancelled"
)

// IsTerminal reports whether the state ends the current survey run. A
// terminal state behaves like idle for starting a new survey once observed.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateResponseComplete, StateSessionExpired, StateCancelled:
		return true
	}
	return false
}

// ConversationState tracks one user's position in a survey traversal.
// One instance per user id; every mutation goes through the conversation
// manager, which serializes access per user.
type ConversationState struct {
	SessionID     string       `json:"sessionId"`
	UserID        string       `json:"userId"`
	State         SessionState `json:"state"`
	SurveyID      int64        `json:"surveyId,omitempty"`
	SurveyVersion int          `json:"surveyVersion,omitempty"`
	ResponseID    string       `json:"responseId,omitempty"`

	// CurrentQuestionID is only meaningful while State is in_survey or
	// answering_question.
	CurrentQuestionID int64 `json:"currentQuestionId,omitempty"`

	// TotalQuestions is informational only: with branching the respondent
	// may legitimately see fewer questions.
	TotalQuestions int `json:"totalQuestions,omitempty"`

	Answered map[int64]AnswerValue `json:"answered,omitempty"`
	Visited  []int64               `json:"visited,omitempty"`
	Skipped  []int64               `json:"skipped,omitempty"`

	// History backs the shallow "previous question" undo. It never removes
	// entries from Answered or Visited.
	History []int64 `json:"history,omitempty"`

	LastActivityAt time.Time         `json:"lastActivityAt"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Touch bumps the last-activity timestamp. Called first by every mutating
// operation.
func (c *ConversationState) Touch(now time.Time) {
	c.LastActivityAt = now
}

// Expired reports whether the state has been idle longer than timeout.
func (c *ConversationState) Expired(now time.Time, timeout time.Duration) bool {
	if c.LastActivityAt.IsZero() {
		return false
	}
	return now.Sub(c.LastActivityAt) > timeout
}

// MarkVisited appends id to the visited set, keeping order and uniqueness.
func (c *ConversationState) MarkVisited(id int64) {
	if c.HasVisited(id) {
		return
	}
	c.Visited = append(c.Visited, id)
}

// HasVisited reports whether the question was already shown this session.
func (c *ConversationState) HasVisited(id int64) bool {
	for _, v := range c.Visited {
		if v == id {
			return true
		}
	}
	return false
}

// MarkSkipped records a skipped question id exactly once.
func (c *ConversationState) MarkSkipped(id int64) {
	for _, v := range c.Skipped {
		if v == id {
			return
		}
	}
	c.Skipped = append(c.Skipped, id)
}

// RecordAnswer stores the answer for a question id, overwriting any prior
// value. Re-answering never duplicates entries.
func (c *ConversationState) RecordAnswer(id int64, answer AnswerValue) {
	if c.Answered == nil {
		c.Answered = make(map[int64]AnswerValue)
	}
	c.Answered[id] = answer
}

// PushHistory remembers the question the user is leaving, so "previous"
// can return there.
func (c *ConversationState) PushHistory(id int64) {
	c.History = append(c.History, id)
}

// PopHistory removes and returns the most recent history entry.
func (c *ConversationState) PopHistory() (int64, bool) {
	if len(c.History) == 0 {
		return 0, false
	}
	id := c.History[len(c.History)-1]
	c.History = c.History[:len(c.History)-1]
	return id, true
}

// ProgressPercent is a best-effort completion estimate: branching means the
// total is not authoritative.
func (c *ConversationState) ProgressPercent() int {
	if c.TotalQuestions <= 0 {
		return 0
	}
	done := len(c.Answered) + len(c.Skipped)
	pct := done * 100 / c.TotalQuestions
	if pct > 100 {
		pct = 100
	}
	return pct
}

// AllAnswered reports whether every counted question was answered or
// skipped. Best-effort under branching, same as ProgressPercent.
func (c *ConversationState) AllAnswered() bool {
	if c.TotalQuestions <= 0 {
		return false
	}
	return len(c.Answered)+len(c.Skipped) >= c.TotalQuestions
}

// SetEndReason records why the run ended in the free-form metadata.
func (c *ConversationState) SetEndReason(reason string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata["endReason"] = reason
}

// ClearSurveyScope drops all survey-scoped fields, keeping identity and
// the lifecycle state chosen by the caller.
func (c *ConversationState) ClearSurveyScope() {
	c.SurveyID = 0
	c.SurveyVersion = 0
	c.ResponseID = ""
	c.CurrentQuestionID = 0
	c.TotalQuestions = 0
	c.Answered = nil
	c.Visited = nil
	c.Skipped = nil
	c.History = nil
}

// Clone returns a deep copy so stores and callers never alias live state.
func (c *ConversationState) Clone() *ConversationState {
	cp := *c
	if c.Answered != nil {
		cp.Answered = make(map[int64]AnswerValue, len(c.Answered))
		for k, v := range c.Answered {
			cp.Answered[k] = v
		}
	}
	cp.Visited = append([]int64(nil), c.Visited...)
	cp.Skipped = append([]int64(nil), c.Skipped...)
	cp.History = append([]int64(nil), c.History...)
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
