package conversations

import "errors"

// Typed results for every failure mode callers are expected to handle.
// None of these are thrown as panics; only broken invariants are fatal.
var (
	// ErrInvalidTransition: the operation is not legal in the current
	// lifecycle state (e.g. answering while idle). Caller re-prompts.
	ErrInvalidTransition = errors.New("conversation: invalid state transition")

	// ErrSessionExpired: the state was idle longer than the session
	// timeout. Reported on access, never silently advanced.
	ErrSessionExpired = errors.New("conversation: session expired")

	// ErrCycleDetected: the branching graph would revisit a question. An
	// authoring defect, not a user error; the session is terminated
	// gracefully and the caller chooses how to word it.
	ErrCycleDetected = errors.New("conversation: branching cycle detected")

	// ErrQuestionRequired: skip attempted on a required question.
	ErrQuestionRequired = errors.New("conversation: question is required")

	// ErrSurveyModified: the survey graph changed under an active session
	// (version stamp mismatch).
	ErrSurveyModified = errors.New("conversation: survey modified mid-session")

	// ErrUnknownSurvey / ErrUnknownQuestion: the repository returned
	// nothing; the survey run is aborted for this user.
	ErrUnknownSurvey   = errors.New("conversation: unknown survey")
	ErrUnknownQuestion = errors.New("conversation: unknown question")

	// ErrStateNotFound is returned by stores when no state exists for a
	// user id. The manager maps it to ErrInvalidTransition for operations
	// that need an active session.
	ErrStateNotFound = errors.New("conversation: state not found")
)
