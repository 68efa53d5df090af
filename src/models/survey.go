package models

import (
	"fmt"
	"time"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
	QuestionNumber         QuestionType = "number"
	QuestionDate           QuestionType = "date"
	QuestionLocation       QuestionType = "location"
)

// IsChoice reports whether the question type selects from a fixed option list.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice
}

// NextStepKind tags the two variants of a NextStep.
type NextStepKind string

const (
	NextGoToQuestion NextStepKind = "go_to_question"
	NextEndSurvey    NextStepKind = "end_survey"
)

// NextStep is the next-step determinant: either "go to question X" or
// "end the survey". A zero QuestionID never appears on the go_to_question
// variant; construct values through GoToQuestion / EndOfSurvey.
type NextStep struct {
	Kind       NextStepKind `bson:"kind" json:"kind"`
	QuestionID int64        `bson:"questionId,omitempty" json:"questionId,omitempty"`
}

// GoToQuestion builds a next-step determinant pointing at questionID.
// Panics on a non-positive id: that is a programming error, not survey data.
func GoToQuestion(questionID int64) NextStep {
	if questionID <= 0 {
		panic(fmt.Sprintf("models: GoToQuestion with non-positive id %d", questionID))
	}
	return NextStep{Kind: NextGoToQuestion, QuestionID: questionID}
}

// EndOfSurvey builds the end-survey determinant.
func EndOfSurvey() NextStep {
	return NextStep{Kind: NextEndSurvey}
}

// IsEnd reports whether the determinant terminates the survey.
func (n NextStep) IsEnd() bool {
	return n.Kind == NextEndSurvey
}

// --- Survey ---
type Survey struct {
	ID          int64     `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Version     int       `bson:"version" json:"version"`
	IsActive    bool      `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt   time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// --- Question ---
// OrderIndex is only the sequential fallback; explicit flow is configured
// through option next-steps, branching rules and the default Next.
type Question struct {
	ID         int64        `bson:"_id" json:"id"`
	SurveyID   int64        `bson:"surveyId" json:"surveyId"`
	Text       string       `bson:"text" json:"text"`
	Type       QuestionType `bson:"type" json:"type"`
	OrderIndex int          `bson:"orderIndex" json:"orderIndex"`
	Required   bool         `bson:"required" json:"required"`
	RatingMin  int          `bson:"ratingMin,omitempty" json:"ratingMin,omitempty"`
	RatingMax  int          `bson:"ratingMax,omitempty" json:"ratingMax,omitempty"`
	Options    []Option     `bson:"options,omitempty" json:"options,omitempty"`
	Next       *NextStep    `bson:"next,omitempty" json:"next,omitempty"`
}

// RatingBounds returns the configured rating range, defaulting to 1..5.
func (q Question) RatingBounds() (min, max int) {
	min, max = q.RatingMin, q.RatingMax
	if min == 0 && max == 0 {
		return 1, 5
	}
	return min, max
}

// HasOptions reports whether the question exposes a fixed option list
// (choice types, or a rating published with labelled options).
func (q Question) HasOptions() bool {
	return len(q.Options) > 0
}

// --- Option ---
type Option struct {
	ID         int64     `bson:"_id" json:"id"`
	QuestionID int64     `bson:"questionId" json:"questionId"`
	Text       string    `bson:"text" json:"text"`
	OrderIndex int       `bson:"orderIndex" json:"orderIndex"`
	Next       *NextStep `bson:"next,omitempty" json:"next,omitempty"`
}

// RuleOperator enumerates branching-rule condition operators.
type RuleOperator string

const (
	OpEquals             RuleOperator = "equals"
	OpContains           RuleOperator = "contains"
	OpIn                 RuleOperator = "in"
	OpGreaterThan        RuleOperator = "greater_than"
	OpLessThan           RuleOperator = "less_than"
	OpGreaterThanOrEqual RuleOperator = "greater_than_or_equal"
	OpLessThanOrEqual    RuleOperator = "less_than_or_equal"
	// OpExpression evaluates Values[0] as a boolean expression over the
	// answer. Compiled and rejected at authoring time when invalid.
	OpExpression RuleOperator = "expression"
)

// IsNumeric reports whether the operator compares numbers.
func (op RuleOperator) IsNumeric() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		return true
	}
	return false
}

// RuleCondition is evaluated against the canonical form of an answer.
type RuleCondition struct {
	Operator  RuleOperator `bson:"operator" json:"operator"`
	Values    []string     `bson:"values" json:"values"`
	ValueType AnswerKind   `bson:"valueType,omitempty" json:"valueType,omitempty"`
}

// --- BranchingRule ---
// Condition-based edge from source to target, usable by non-choice answers.
// Invariants (enforced at authoring time): source != target, at most one
// rule per (source, target) pair. Resolution order is rule id ascending.
type BranchingRule struct {
	ID               int64         `bson:"_id" json:"id"`
	SurveyID         int64         `bson:"surveyId" json:"surveyId"`
	SourceQuestionID int64         `bson:"sourceQuestionId" json:"sourceQuestionId"`
	TargetQuestionID int64         `bson:"targetQuestionId" json:"targetQuestionId"`
	Condition        RuleCondition `bson:"condition" json:"condition"`
}
