package models

import (
	"time"
)

// SurveyResponse is the persisted record of one completed (or cancelled)
// survey run. Built from the final conversation state when the session ends.
type SurveyResponse struct {
	ID            string           `bson:"_id" json:"id"`
	SurveyID      int64            `bson:"surveyId" json:"surveyId"`
	SurveyVersion int              `bson:"surveyVersion" json:"surveyVersion"`
	UserID        string           `bson:"userId" json:"userId"`
	SessionID     string           `bson:"sessionId" json:"sessionId"`
	Completed     bool             `bson:"completed" json:"completed"`
	Answers       []RecordedAnswer `bson:"answers,omitempty" json:"answers"`
	SkippedIDs    []int64          `bson:"skippedIds,omitempty" json:"skippedIds,omitempty"`
	CreatedAt     time.Time        `bson:"createdAt" json:"createdAt"`
}

// RecordedAnswer pairs a question id with the answer given to it.
type RecordedAnswer struct {
	QuestionID int64       `bson:"questionId" json:"questionId"`
	Answer     AnswerValue `bson:"answer" json:"answer"`
}
