package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

// fakeRepo is an in-memory SurveyRepository for manager tests.
type fakeRepo struct {
	surveys   map[int64]*models.Survey
	questions map[int64]*models.Question
	ordered   map[int64][]models.Question
	rules     map[int64][]models.BranchingRule
}

func (r *fakeRepo) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	return r.surveys[id], nil
}

func (r *fakeRepo) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	return r.questions[id], nil
}

func (r *fakeRepo) GetSurveyQuestionsOrdered(ctx context.Context, surveyID int64) ([]models.Question, error) {
	return r.ordered[surveyID], nil
}

func (r *fakeRepo) GetBranchingRules(ctx context.Context, surveyID int64) ([]models.BranchingRule, error) {
	return r.rules[surveyID], nil
}

// newFixture builds a manager over a three-question survey:
//
//	101 single choice, required: "Yes" falls through, "No" jumps to 103
//	102 number, optional
//	103 text, optional, last in order
//
// plus a second survey whose two questions point at each other, for the
// cycle guard.
func newFixture() (*Manager, *fakeRepo, *MemoryStore) {
	q101 := models.Question{ID: 101, SurveyID: 1, Text: "Continue?", Type: models.QuestionSingleChoice, OrderIndex: 1, Required: true, Options: []models.Option{
		{ID: 1, QuestionID: 101, Text: "Yes", OrderIndex: 1},
		{ID: 2, QuestionID: 101, Text: "No", OrderIndex: 2, Next: ptrNext(models.GoToQuestion(103))},
	}}
	q102 := models.Question{ID: 102, SurveyID: 1, Text: "How many?", Type: models.QuestionNumber, OrderIndex: 2}
	q103 := models.Question{ID: 103, SurveyID: 1, Text: "Anything else?", Type: models.QuestionText, OrderIndex: 3}

	q201 := models.Question{ID: 201, SurveyID: 2, Text: "First", Type: models.QuestionText, OrderIndex: 1, Next: ptrNext(models.GoToQuestion(202))}
	q202 := models.Question{ID: 202, SurveyID: 2, Text: "Second", Type: models.QuestionText, OrderIndex: 2, Next: ptrNext(models.GoToQuestion(201))}

	repo := &fakeRepo{
		surveys: map[int64]*models.Survey{
			1: {ID: 1, Title: "Feedback", Version: 2, IsActive: true},
			2: {ID: 2, Title: "Looped", Version: 1, IsActive: true},
			3: {ID: 3, Title: "Retired", Version: 1, IsActive: false},
		},
		questions: map[int64]*models.Question{
			101: &q101, 102: &q102, 103: &q103, 201: &q201, 202: &q202,
		},
		ordered: map[int64][]models.Question{
			1: {q101, q102, q103},
			2: {q201, q202},
		},
		rules: map[int64][]models.BranchingRule{},
	}
	store := NewMemoryStore()
	return NewManager(store, repo), repo, store
}

func ptrNext(n models.NextStep) *models.NextStep { return &n }

func TestStartSurvey(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	first, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), first.ID)

	current, err := m.GetCurrentQuestionID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), current)

	pct, err := m.GetProgressPercent(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, pct)
}

func TestStartSurveyRejections(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 99)
	assert.ErrorIs(t, err, ErrUnknownSurvey)

	// Inactive surveys cannot be started.
	_, err = m.StartSurvey(ctx, "u1", 3)
	assert.ErrorIs(t, err, ErrUnknownSurvey)

	// A second start during an active run is rejected.
	_, err = m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = m.StartSurvey(ctx, "u1", 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAnswerAdvancesSequentially(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	out, err := m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)
	require.NotNil(t, out.NextQuestion)
	assert.Equal(t, int64(102), out.NextQuestion.ID)
	assert.False(t, out.Completed)

	out, err = m.AnswerQuestion(ctx, "u1", 102, models.NewNumberAnswer(3))
	require.NoError(t, err)
	assert.Equal(t, int64(103), out.NextQuestion.ID)

	// Last question in order: answering it ends the survey.
	out, err = m.AnswerQuestion(ctx, "u1", 103, models.NewTextAnswer("done"))
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.True(t, out.Next.IsEnd())
	assert.Nil(t, out.NextQuestion)

	done, err := m.IsAllAnswered(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestAnswerOptionJump(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	// "No" carries an option-level jump straight to 103, skipping 102.
	out, err := m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("No"))
	require.NoError(t, err)
	require.NotNil(t, out.NextQuestion)
	assert.Equal(t, int64(103), out.NextQuestion.ID)
}

func TestAnswerWrongQuestion(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	_, err = m.AnswerQuestion(ctx, "u1", 103, models.NewTextAnswer("jump ahead"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// No session at all.
	_, err = m.AnswerQuestion(ctx, "u2", 101, models.NewTextAnswer("hi"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReAnswerOverwrites(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)

	// Go back and answer differently: one entry, new value, no duplicates.
	_, err = m.PreviousQuestion(ctx, "u1")
	require.NoError(t, err)
	out, err := m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)
	assert.Equal(t, int64(102), out.NextQuestion.ID)

	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, state.Answered, 1)
	assert.Equal(t, "Yes", state.Answered[101].Selected)
	assert.Equal(t, []int64{101}, state.Visited)
}

func TestSkipQuestion(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	// 101 is required: the skip is rejected and nothing moves.
	_, err = m.SkipQuestion(ctx, "u1", 101)
	assert.ErrorIs(t, err, ErrQuestionRequired)
	current, err := m.GetCurrentQuestionID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), current)

	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)

	// 102 is optional: the skip advances without recording an answer.
	out, err := m.SkipQuestion(ctx, "u1", 102)
	require.NoError(t, err)
	assert.Equal(t, int64(103), out.NextQuestion.ID)

	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{102}, state.Skipped)
	_, answered, err := m.GetAnswerByQuestionID(ctx, "u1", 102)
	require.NoError(t, err)
	assert.False(t, answered)
}

func TestPreviousQuestion(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	// Nothing to go back to yet.
	_, err = m.PreviousQuestion(ctx, "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)

	prev, err := m.PreviousQuestion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), prev.ID)

	current, err := m.GetCurrentQuestionID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), current)
}

func TestCycleForcesCompletion(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 2)
	require.NoError(t, err)

	_, err = m.AnswerQuestion(ctx, "u1", 201, models.NewTextAnswer("a"))
	require.NoError(t, err)

	// 202 points back at the already-visited 201: the run must end
	// gracefully instead of looping.
	out, err := m.AnswerQuestion(ctx, "u1", 202, models.NewTextAnswer("b"))
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.True(t, out.Completed)
	assert.True(t, out.CycleDetected)
	assert.True(t, out.Next.IsEnd())

	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateResponseComplete, state.State)
	assert.Equal(t, "cycle_detected", state.Metadata["endReason"])
}

func TestSessionExpiry(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	// Within the window the session stays live.
	clock = clock.Add(29 * time.Minute)
	_, err = m.GetCurrentQuestionID(ctx, "u1")
	require.NoError(t, err)

	// Activity resets the timer.
	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)
	clock = clock.Add(29 * time.Minute)
	_, err = m.GetCurrentQuestionID(ctx, "u1")
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	_, err = m.AnswerQuestion(ctx, "u1", 102, models.NewNumberAnswer(1))
	assert.ErrorIs(t, err, ErrSessionExpired)

	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateSessionExpired, state.State)

	// An expired run does not block starting over.
	first, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), first.ID)
}

func TestCancelSurveyExpired(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)

	// An expired session must be reported, never silently cancelled with
	// its stale partial answers handed back.
	clock = clock.Add(31 * time.Minute)
	snapshot, err := m.CancelSurvey(ctx, "u1")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, snapshot)

	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, models.StateCancelled, state.State)
}

func TestSurveyModifiedMidSession(t *testing.T) {
	m, repo, store := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	// The survey graph changes while the respondent is mid-run.
	repo.surveys[1].Version = 3

	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	assert.ErrorIs(t, err, ErrSurveyModified)

	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, state.State)
	assert.Equal(t, "survey_modified", state.Metadata["endReason"])
}

func TestCompleteSurvey(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("No"))
	require.NoError(t, err)
	_, err = m.AnswerQuestion(ctx, "u1", 103, models.NewTextAnswer("all good"))
	require.NoError(t, err)

	snapshot, err := m.CompleteSurvey(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateResponseComplete, snapshot.State)
	assert.Equal(t, int64(1), snapshot.SurveyID)
	assert.Len(t, snapshot.Answered, 2)
	assert.NotEmpty(t, snapshot.ResponseID)

	// The stored state keeps identity but drops all survey scope.
	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateResponseComplete, state.State)
	assert.Zero(t, state.SurveyID)
	assert.Empty(t, state.Answered)

	// Completing twice makes no sense.
	_, err = m.CompleteSurvey(ctx, "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelSurvey(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = m.AnswerQuestion(ctx, "u1", 101, models.NewSingleChoiceAnswer("Yes"))
	require.NoError(t, err)

	snapshot, err := m.CancelSurvey(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, snapshot.State)
	// Partial answers survive in the snapshot for optional persistence.
	assert.Len(t, snapshot.Answered, 1)

	_, err = m.CancelSurvey(ctx, "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A cancelled user can start fresh immediately.
	_, err = m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
}

func TestBeginSurveySelection(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	require.NoError(t, m.BeginSurveySelection(ctx, "u1"))
	state, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StateWaitingSurveySelection, state.State)

	_, err = m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)

	// Mid-survey the selection prompt is not allowed.
	err = m.BeginSurveySelection(ctx, "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClearSession(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	_, err := m.StartSurvey(ctx, "u1", 1)
	require.NoError(t, err)
	require.NoError(t, m.ClearSession(ctx, "u1"))
	assert.Equal(t, 0, store.Len())

	_, err = m.GetCurrentQuestionID(ctx, "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
