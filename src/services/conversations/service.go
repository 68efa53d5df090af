// Package conversations implements the per-user survey session state
// machine: starting a survey, committing answers and skips, shallow
// back-navigation, completion, cancellation and lazy inactivity expiry.
package conversations

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/flow"
)

// DefaultSessionTimeout is the inactivity window after which a session is
// reported as expired on its next access.
const DefaultSessionTimeout = 30 * time.Minute

// SurveyRepository is the read contract the manager consumes from the
// persistence layer. Reads are assumed consistent for the duration of one
// operation; the transaction boundary is the collaborator's concern.
type SurveyRepository interface {
	GetSurvey(ctx context.Context, id int64) (*models.Survey, error)
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	GetSurveyQuestionsOrdered(ctx context.Context, surveyID int64) ([]models.Question, error)
	GetBranchingRules(ctx context.Context, surveyID int64) ([]models.BranchingRule, error)
}

// AnswerOutcome reports how an answer or skip advanced the conversation.
// When CycleDetected is set the survey was force-terminated because the
// branching graph tried to revisit a question; the accompanying error is
// ErrCycleDetected and the outcome remains valid, so the caller can choose
// between a generic "survey ended" and an explicit error message.
type AnswerOutcome struct {
	Next          models.NextStep
	NextQuestion  *models.Question
	Completed     bool
	CycleDetected bool
}

// Manager owns conversation state transitions. All operations for one user
// id are serialized through a per-user lock; different users never contend.
type Manager struct {
	store    Store
	surveys  SurveyRepository
	resolver flow.Resolver
	timeout  time.Duration
	locks    *userLocks
	now      func() time.Time
}

// NewManager builds a manager with the default 30-minute session timeout.
func NewManager(store Store, surveys SurveyRepository) *Manager {
	return NewManagerWithTimeout(store, surveys, DefaultSessionTimeout)
}

// NewManagerWithTimeout overrides the inactivity timeout.
func NewManagerWithTimeout(store Store, surveys SurveyRepository, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &Manager{
		store:   store,
		surveys: surveys,
		timeout: timeout,
		locks:   newUserLocks(),
		now:     time.Now,
	}
}

// Timeout returns the configured inactivity timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// BeginSurveySelection moves a user into waiting_survey_selection so a
// survey list can be offered. Allowed from idle (no state) or any terminal
// state.
func (m *Manager) BeginSurveySelection(ctx context.Context, userID string) error {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)

	state, err := m.store.Get(ctx, userID)
	if err != nil && err != ErrStateNotFound {
		return err
	}
	if state != nil && !state.State.IsTerminal() &&
		state.State != models.StateWaitingSurveySelection &&
		!state.Expired(m.now(), m.timeout) {
		return ErrInvalidTransition
	}

	fresh := &models.ConversationState{
		SessionID: uuid.NewString(),
		UserID:    userID,
		State:     models.StateWaitingSurveySelection,
	}
	fresh.Touch(m.now())
	return m.store.Set(ctx, userID, fresh)
}

// StartSurvey begins a fresh survey run and returns the first question.
// Allowed when the user is idle (no state), waiting for survey selection,
// or left over in a terminal/expired state; an active run must be cancelled
// or completed first.
func (m *Manager) StartSurvey(ctx context.Context, userID string, surveyID int64) (*models.Question, error) {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)

	state, err := m.store.Get(ctx, userID)
	if err != nil && err != ErrStateNotFound {
		return nil, err
	}
	if state != nil && !state.State.IsTerminal() &&
		state.State != models.StateWaitingSurveySelection &&
		!state.Expired(m.now(), m.timeout) {
		return nil, ErrInvalidTransition
	}

	survey, err := m.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey %d: %w", surveyID, err)
	}
	if survey == nil || !survey.IsActive {
		return nil, ErrUnknownSurvey
	}

	ordered, err := m.surveys.GetSurveyQuestionsOrdered(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("load questions for survey %d: %w", surveyID, err)
	}
	if len(ordered) == 0 {
		return nil, ErrUnknownQuestion
	}
	first := ordered[0]

	fresh := &models.ConversationState{
		SessionID:         uuid.NewString(),
		UserID:            userID,
		State:             models.StateInSurvey,
		SurveyID:          surveyID,
		SurveyVersion:     survey.Version,
		ResponseID:        uuid.NewString(),
		CurrentQuestionID: first.ID,
		TotalQuestions:    len(ordered),
	}
	fresh.MarkVisited(first.ID)
	fresh.Touch(m.now())

	if err := m.store.Set(ctx, userID, fresh); err != nil {
		return nil, err
	}
	return &first, nil
}

// AnswerQuestion commits a validated answer for the user's current
// question, resolves the next step and applies it. Re-answering the current
// question overwrites the stored answer without duplicating entries.
func (m *Manager) AnswerQuestion(ctx context.Context, userID string, questionID int64, answer models.AnswerValue) (AnswerOutcome, error) {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)

	state, err := m.activeState(ctx, userID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if questionID != state.CurrentQuestionID {
		return AnswerOutcome{}, ErrInvalidTransition
	}

	question, err := m.loadQuestionChecked(ctx, userID, state, questionID)
	if err != nil {
		return AnswerOutcome{}, err
	}

	// Momentary answering_question transition; the applied next step moves
	// the state back to in_survey or to response_complete.
	state.State = models.StateAnsweringQuestion
	state.Touch(m.now())
	state.RecordAnswer(questionID, answer)
	state.MarkVisited(questionID)

	return m.resolveAndApply(ctx, userID, state, *question, answer)
}

// SkipQuestion advances past a non-required question without recording an
// answer. Skipping a required question is rejected with ErrQuestionRequired
// and leaves the state untouched.
func (m *Manager) SkipQuestion(ctx context.Context, userID string, questionID int64) (AnswerOutcome, error) {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)

	state, err := m.activeState(ctx, userID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if questionID != state.CurrentQuestionID {
		return AnswerOutcome{}, ErrInvalidTransition
	}

	question, err := m.loadQuestionChecked(ctx, userID, state, questionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if question.Required {
		return AnswerOutcome{}, ErrQuestionRequired
	}

	state.State = models.StateAnsweringQuestion
	state.Touch(m.now())
	state.MarkSkipped(questionID)
	state.MarkVisited(questionID)

	// A skip carries no answer: option matches and rules cannot fire, so
	// resolution falls through to the default or sequential next step.
	return m.resolveAndApply(ctx, userID, state, *question, models.AnswerValue{})
}

// PreviousQuestion is a shallow undo: it pops the most recent entry off the
// navigation history and returns there. It never un-visits or un-answers.
func (m *Manager) PreviousQuestion(ctx context.Context, userID string) (*models.Question, error) {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)

	state, err := m.activeState(ctx, userID)
	if err != nil {
		return nil, err
	}

	prevID, ok := state.PopHistory()
	if !ok {
		return nil, ErrInvalidTransition
	}

	question, err := m.surveys.GetQuestion(ctx, prevID)
	if err != nil {
		return nil, fmt.Errorf("load question %d: %w", prevID, err)
	}
	if question == nil {
		m.abort(ctx, userID)
		return nil, ErrUnknownQuestion
	}

	state.CurrentQuestionID = prevID
	state.State = models.StateInSurvey
	state.Touch(m.now())
	if err := m.store.Set(ctx, userID, state); err != nil {
		return nil, err
	}
	return question, nil
}

// CompleteSurvey finalizes the run: it returns a snapshot of the final
// state (for response persistence) and clears all survey-scoped fields.
// Legal while in the survey or after an automatic end-of-survey completion.
func (m *Manager) CompleteSurvey(ctx context.Context, userID string) (*models.ConversationState, error) {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)

	state, err := m.store.Get(ctx, userID)
	if err != nil {
		if err == ErrStateNotFound {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	if state.Expired(m.now(), m.timeout) {
		return nil, ErrSessionExpired
	}
	switch state.State {
	case models.StateInSurvey, models.StateAnsweringQuestion, models.StateResponseComplete:
	default:
		return nil, ErrInvalidTransition
	}

	snapshot := state.Clone()
	snapshot.State = models.StateResponseComplete

	state.State = models.StateResponseComplete
	state.ClearSurveyScope()
	state.Touch(m.now())
	if err := m.store.Set(ctx, userID, state); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// CancelSurvey abandons the run. The returned snapshot lets the caller
// persist partial answers if it wants to.
func (m *Manager) CancelSurvey(ctx context.Context, userID string) (*models.ConversationState, error) {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)

	state, err := m.store.Get(ctx, userID)
	if err != nil {
		if err == ErrStateNotFound {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	if state.Expired(m.now(), m.timeout) {
		return nil, ErrSessionExpired
	}
	if state.State.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	snapshot := state.Clone()
	snapshot.State = models.StateCancelled

	state.State = models.StateCancelled
	state.ClearSurveyScope()
	state.Touch(m.now())
	if err := m.store.Set(ctx, userID, state); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ClearSession removes the user's state entirely, returning them to idle.
func (m *Manager) ClearSession(ctx context.Context, userID string) error {
	l := m.locks.lock(userID)
	defer m.locks.unlock(userID, l)
	return m.store.Delete(ctx, userID)
}

// GetCurrentQuestionID returns the question the user is currently on.
func (m *Manager) GetCurrentQuestionID(ctx context.Context, userID string) (int64, error) {
	state, err := m.readState(ctx, userID)
	if err != nil {
		return 0, err
	}
	if state.State != models.StateInSurvey && state.State != models.StateAnsweringQuestion {
		return 0, ErrInvalidTransition
	}
	return state.CurrentQuestionID, nil
}

// GetProgressPercent reports best-effort completion; branching means the
// denominator is informational only.
func (m *Manager) GetProgressPercent(ctx context.Context, userID string) (int, error) {
	state, err := m.readState(ctx, userID)
	if err != nil {
		return 0, err
	}
	return state.ProgressPercent(), nil
}

// IsAllAnswered reports whether every counted question was answered or
// skipped.
func (m *Manager) IsAllAnswered(ctx context.Context, userID string) (bool, error) {
	state, err := m.readState(ctx, userID)
	if err != nil {
		return false, err
	}
	return state.AllAnswered(), nil
}

// GetAnswerByQuestionID returns the stored answer for a question, with
// ok=false when the question was not answered.
func (m *Manager) GetAnswerByQuestionID(ctx context.Context, userID string, questionID int64) (models.AnswerValue, bool, error) {
	state, err := m.readState(ctx, userID)
	if err != nil {
		return models.AnswerValue{}, false, err
	}
	answer, ok := state.Answered[questionID]
	return answer, ok, nil
}

// --- internals ---

// activeState loads the state for a mutating survey operation: it must
// exist, not be expired, and be in an in-survey lifecycle state.
func (m *Manager) activeState(ctx context.Context, userID string) (*models.ConversationState, error) {
	state, err := m.store.Get(ctx, userID)
	if err != nil {
		if err == ErrStateNotFound {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	if state.Expired(m.now(), m.timeout) {
		// Record the expiry so the stored lifecycle matches what was
		// reported, then surface it.
		state.State = models.StateSessionExpired
		if err := m.store.Set(ctx, userID, state); err != nil {
			log.Println("conversations: failed to persist expired state:", err)
		}
		return nil, ErrSessionExpired
	}
	if state.State != models.StateInSurvey && state.State != models.StateAnsweringQuestion {
		return nil, ErrInvalidTransition
	}
	return state, nil
}

// readState is the read-only variant: expiry is still checked and reported,
// but reads never bump last activity.
func (m *Manager) readState(ctx context.Context, userID string) (*models.ConversationState, error) {
	state, err := m.store.Get(ctx, userID)
	if err != nil {
		if err == ErrStateNotFound {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	if state.Expired(m.now(), m.timeout) {
		return nil, ErrSessionExpired
	}
	return state, nil
}

// loadQuestionChecked loads the question and enforces the survey version
// stamp taken at start. A mismatch ends the session: the graph changed
// under the respondent's feet.
func (m *Manager) loadQuestionChecked(ctx context.Context, userID string, state *models.ConversationState, questionID int64) (*models.Question, error) {
	survey, err := m.surveys.GetSurvey(ctx, state.SurveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey %d: %w", state.SurveyID, err)
	}
	if survey == nil {
		m.abort(ctx, userID)
		return nil, ErrUnknownSurvey
	}
	if survey.Version != state.SurveyVersion {
		state.State = models.StateCancelled
		state.SetEndReason("survey_modified")
		state.Touch(m.now())
		if err := m.store.Set(ctx, userID, state); err != nil {
			log.Println("conversations: failed to persist version-mismatch state:", err)
		}
		return nil, ErrSurveyModified
	}

	question, err := m.surveys.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question %d: %w", questionID, err)
	}
	if question == nil {
		m.abort(ctx, userID)
		return nil, ErrUnknownQuestion
	}
	return question, nil
}

// resolveAndApply runs the flow resolver and commits its result, guarding
// against branching cycles before re-entering any node.
func (m *Manager) resolveAndApply(ctx context.Context, userID string, state *models.ConversationState, question models.Question, answer models.AnswerValue) (AnswerOutcome, error) {
	rules, err := m.surveys.GetBranchingRules(ctx, state.SurveyID)
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("load branching rules for survey %d: %w", state.SurveyID, err)
	}
	ordered, err := m.surveys.GetSurveyQuestionsOrdered(ctx, state.SurveyID)
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("load questions for survey %d: %w", state.SurveyID, err)
	}

	next := m.resolver.Resolve(question, rules, ordered, answer)

	if next.IsEnd() {
		state.State = models.StateResponseComplete
		if err := m.store.Set(ctx, userID, state); err != nil {
			return AnswerOutcome{}, err
		}
		return AnswerOutcome{Next: next, Completed: true}, nil
	}

	if state.HasVisited(next.QuestionID) {
		// A cycle in the branching graph is an authoring defect, never a
		// user error. Refuse to re-enter the node and end the survey
		// gracefully; the respondent must not be trapped in a loop.
		log.Printf("conversations: cycle detected in survey %d: question %d would revisit %d",
			state.SurveyID, question.ID, next.QuestionID)
		state.State = models.StateResponseComplete
		state.SetEndReason("cycle_detected")
		if err := m.store.Set(ctx, userID, state); err != nil {
			return AnswerOutcome{}, err
		}
		// The outcome stays valid alongside ErrCycleDetected so the caller
		// can pick generic or explicit messaging.
		return AnswerOutcome{Next: models.EndOfSurvey(), Completed: true, CycleDetected: true}, ErrCycleDetected
	}

	nextQuestion, err := m.surveys.GetQuestion(ctx, next.QuestionID)
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("load question %d: %w", next.QuestionID, err)
	}
	if nextQuestion == nil {
		m.abort(ctx, userID)
		return AnswerOutcome{}, ErrUnknownQuestion
	}

	state.PushHistory(question.ID)
	state.CurrentQuestionID = next.QuestionID
	state.State = models.StateInSurvey
	if err := m.store.Set(ctx, userID, state); err != nil {
		return AnswerOutcome{}, err
	}
	return AnswerOutcome{Next: next, NextQuestion: nextQuestion}, nil
}

// abort drops the user's state after a not-found collaborator result.
func (m *Manager) abort(ctx context.Context, userID string) {
	if err := m.store.Delete(ctx, userID); err != nil {
		log.Println("conversations: failed to clear aborted session:", err)
	}
}
