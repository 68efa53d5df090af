package conversations

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrStateNotFound)

	state := &models.ConversationState{
		SessionID: "s1",
		UserID:    "u1",
		State:     models.StateInSurvey,
		SurveyID:  1,
		Answered:  map[int64]models.AnswerValue{101: models.NewTextAnswer("hi")},
		Visited:   []int64{101},
	}
	require.NoError(t, s.Set(ctx, "u1", state))

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "hi", got.Answered[101].Text)

	require.NoError(t, s.Delete(ctx, "u1"))
	_, err = s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrStateNotFound)

	// Deleting a missing key is a no-op.
	require.NoError(t, s.Delete(ctx, "u1"))
}

func TestMemoryStoreNeverAliases(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	state := &models.ConversationState{
		SessionID: "s1",
		UserID:    "u1",
		State:     models.StateInSurvey,
		Answered:  map[int64]models.AnswerValue{101: models.NewTextAnswer("original")},
		Visited:   []int64{101},
	}
	require.NoError(t, s.Set(ctx, "u1", state))

	// Mutating the value passed in must not leak into the store.
	state.Answered[101] = models.NewTextAnswer("mutated after set")
	state.Visited = append(state.Visited, 999)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Answered[101].Text)
	assert.Equal(t, []int64{101}, got.Visited)

	// Mutating a returned value must not leak either.
	got.Answered[101] = models.NewTextAnswer("mutated after get")
	again, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Answered[101].Text)
}

// Concurrent answers for different users must not corrupt each other's
// sessions; each user walks their own survey to the end.
func TestManagerConcurrentUsers(t *testing.T) {
	m, _, store := newFixture()
	ctx := context.Background()

	const users = 16
	var wg sync.WaitGroup
	errs := make(chan error, users*4)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := string(rune('a' + i))
			if _, err := m.StartSurvey(ctx, userID, 1); err != nil {
				errs <- err
				return
			}
			if _, err := m.AnswerQuestion(ctx, userID, 101, models.NewSingleChoiceAnswer("Yes")); err != nil {
				errs <- err
				return
			}
			if _, err := m.AnswerQuestion(ctx, userID, 102, models.NewNumberAnswer(float64(i))); err != nil {
				errs <- err
				return
			}
			if _, err := m.AnswerQuestion(ctx, userID, 103, models.NewTextAnswer("done")); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent run failed: %v", err)
	}

	assert.Equal(t, users, store.Len())
	for i := 0; i < users; i++ {
		userID := string(rune('a' + i))
		state, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, models.StateResponseComplete, state.State)
		assert.Equal(t, float64(i), state.Answered[102].Number)
	}
}

// Lock entries must not accumulate: once no operation holds a user's lock
// the map entry is gone, regardless of how many users have been seen.
func TestUserLocksReleased(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	for _, userID := range []string{"u1", "u2", "u3"} {
		_, err := m.StartSurvey(ctx, userID, 1)
		require.NoError(t, err)
		_, err = m.AnswerQuestion(ctx, userID, 101, models.NewSingleChoiceAnswer("Yes"))
		require.NoError(t, err)
		require.NoError(t, m.ClearSession(ctx, userID))
	}
	assert.Equal(t, 0, m.locks.len())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.StartSurvey(ctx, "shared", 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, m.locks.len())
}

// Racing operations for the same user must serialize: exactly one of two
// simultaneous starts wins, the other sees an active session.
func TestManagerSameUserSerializes(t *testing.T) {
	m, _, _ := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.StartSurvey(ctx, "u1", 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case err == ErrInvalidTransition:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
}
