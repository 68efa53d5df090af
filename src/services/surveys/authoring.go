package surveys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/flow"
)

var validate = validator.New()

// ErrDuplicateRule: a branching rule already connects the (source, target)
// pair. At most one rule per pair is allowed.
var ErrDuplicateRule = errors.New("surveys: duplicate branching rule for source/target pair")

// CreateSurveyRequest is the authoring payload for a survey with its
// question graph.
type CreateSurveyRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Questions   []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// QuestionInput authors one question. Next-step targets reference other
// questions by their position in the request, so authors do not need to
// know ids that are assigned on insert.
type QuestionInput struct {
	Text      string        `json:"text" validate:"required"`
	Type      string        `json:"type" validate:"required,oneof=text single_choice multiple_choice rating number date location"`
	Required  bool          `json:"required"`
	RatingMin int           `json:"ratingMin" validate:"omitempty,min=0"`
	RatingMax int           `json:"ratingMax" validate:"omitempty,gtefield=RatingMin"`
	Options   []OptionInput `json:"options" validate:"dive"`
	Next      *NextInput    `json:"next"`
}

// OptionInput authors one option of a choice question. Option text may not
// contain a comma (0x2C): multiple-choice input is comma-separated and the
// canonical multi-select form joins selections with commas, so such an
// option could never be selected unambiguously.
type OptionInput struct {
	Text string     `json:"text" validate:"required,excludesall=0x2C"`
	Next *NextInput `json:"next"`
}

// NextInput authors a next-step determinant: either End or a zero-based
// index into the request's question list.
type NextInput struct {
	End           bool `json:"end"`
	QuestionIndex *int `json:"questionIndex"`
}

// AddRuleRequest authors one branching rule between two existing questions.
type AddRuleRequest struct {
	SourceQuestionID int64    `json:"sourceQuestionId" validate:"required,gt=0"`
	TargetQuestionID int64    `json:"targetQuestionId" validate:"required,gt=0"`
	Operator         string   `json:"operator" validate:"required"`
	Values           []string `json:"values" validate:"required,min=1"`
	ValueType        string   `json:"valueType"`
}

// CreateSurvey validates and stores a survey with its questions and
// options, assigning sequential ids. New surveys start at version 1.
func (s *Service) CreateSurvey(ctx context.Context, req *CreateSurveyRequest) (*models.Survey, []models.Question, error) {
	if err := validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("invalid survey payload: %w", err)
	}

	surveyID, err := s.nextSequence(ctx, "surveys")
	if err != nil {
		return nil, nil, err
	}

	// First pass: assign question ids so next-step indexes can be mapped.
	ids := make([]int64, len(req.Questions))
	for i := range req.Questions {
		id, err := s.nextSequence(ctx, "questions")
		if err != nil {
			return nil, nil, err
		}
		ids[i] = id
	}

	resolveNext := func(in *NextInput) (*models.NextStep, error) {
		if in == nil {
			return nil, nil
		}
		if in.End {
			step := models.EndOfSurvey()
			return &step, nil
		}
		if in.QuestionIndex == nil || *in.QuestionIndex < 0 || *in.QuestionIndex >= len(ids) {
			return nil, fmt.Errorf("next-step question index out of range")
		}
		step := models.GoToQuestion(ids[*in.QuestionIndex])
		return &step, nil
	}

	questions := make([]models.Question, 0, len(req.Questions))
	docs := make([]interface{}, 0, len(req.Questions))
	for i, qi := range req.Questions {
		next, err := resolveNext(qi.Next)
		if err != nil {
			return nil, nil, fmt.Errorf("question %d: %w", i, err)
		}

		question := models.Question{
			ID:         ids[i],
			SurveyID:   surveyID,
			Text:       qi.Text,
			Type:       models.QuestionType(qi.Type),
			OrderIndex: i + 1,
			Required:   qi.Required,
			RatingMin:  qi.RatingMin,
			RatingMax:  qi.RatingMax,
			Next:       next,
		}
		for j, oi := range qi.Options {
			optNext, err := resolveNext(oi.Next)
			if err != nil {
				return nil, nil, fmt.Errorf("question %d option %d: %w", i, j, err)
			}
			optionID, err := s.nextSequence(ctx, "options")
			if err != nil {
				return nil, nil, err
			}
			question.Options = append(question.Options, models.Option{
				ID:         optionID,
				QuestionID: question.ID,
				Text:       oi.Text,
				OrderIndex: j + 1,
				Next:       optNext,
			})
		}
		questions = append(questions, question)
		docs = append(docs, question)
	}

	now := time.Now()
	survey := &models.Survey{
		ID:          surveyID,
		Title:       req.Title,
		Description: req.Description,
		Version:     1,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.surveys.InsertOne(ctx, survey); err != nil {
		return nil, nil, fmt.Errorf("insert survey: %w", err)
	}
	if _, err := s.questions.InsertMany(ctx, docs); err != nil {
		return nil, nil, fmt.Errorf("insert questions: %w", err)
	}
	return survey, questions, nil
}

// AddBranchingRule validates and stores a rule, bumping the survey version
// so in-flight conversations notice the graph changed.
func (s *Service) AddBranchingRule(ctx context.Context, surveyID int64, req *AddRuleRequest) (*models.BranchingRule, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid rule payload: %w", err)
	}
	if req.SourceQuestionID == req.TargetQuestionID {
		return nil, fmt.Errorf("surveys: rule source and target must differ")
	}

	condition := models.RuleCondition{
		Operator:  models.RuleOperator(req.Operator),
		Values:    req.Values,
		ValueType: models.AnswerKind(req.ValueType),
	}
	if err := ValidateRuleCondition(condition); err != nil {
		return nil, err
	}

	for _, id := range []int64{req.SourceQuestionID, req.TargetQuestionID} {
		question, err := s.GetQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		if question == nil || question.SurveyID != surveyID {
			return nil, fmt.Errorf("surveys: question %d does not belong to survey %d", id, surveyID)
		}
	}

	count, err := s.rules.CountDocuments(ctx, bson.M{
		"surveyId":         surveyID,
		"sourceQuestionId": req.SourceQuestionID,
		"targetQuestionId": req.TargetQuestionID,
	})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateRule
	}

	id, err := s.nextSequence(ctx, "branching_rules")
	if err != nil {
		return nil, err
	}
	rule := &models.BranchingRule{
		ID:               id,
		SurveyID:         surveyID,
		SourceQuestionID: req.SourceQuestionID,
		TargetQuestionID: req.TargetQuestionID,
		Condition:        condition,
	}
	if _, err := s.rules.InsertOne(ctx, rule); err != nil {
		return nil, fmt.Errorf("insert branching rule: %w", err)
	}

	if _, err := s.surveys.UpdateOne(ctx,
		bson.M{"_id": surveyID},
		bson.M{"$inc": bson.M{"version": 1}, "$set": bson.M{"updatedAt": time.Now()}},
	); err != nil {
		return nil, fmt.Errorf("bump survey version: %w", err)
	}
	return rule, nil
}

// ValidateRuleCondition rejects malformed conditions at authoring time:
// unknown operators, numeric operators with non-numeric values, expressions
// that do not compile. Resolution-time evaluation treats anything that
// slips through as non-matching, but it should never get that far.
func ValidateRuleCondition(cond models.RuleCondition) error {
	if len(cond.Values) == 0 {
		return fmt.Errorf("surveys: rule condition needs at least one value")
	}

	switch cond.Operator {
	case models.OpEquals, models.OpContains, models.OpIn:
		return nil

	case models.OpGreaterThan, models.OpLessThan,
		models.OpGreaterThanOrEqual, models.OpLessThanOrEqual:
		if _, err := cast.ToFloat64E(strings.TrimSpace(cond.Values[0])); err != nil {
			return fmt.Errorf("surveys: operator %s needs a numeric value, got %q", cond.Operator, cond.Values[0])
		}
		return nil

	case models.OpExpression:
		env := flow.ExpressionEnv(models.AnswerValue{})
		if _, err := expr.Compile(cond.Values[0], expr.Env(env), expr.AsBool()); err != nil {
			return fmt.Errorf("surveys: expression does not compile: %w", err)
		}
		return nil
	}
	return fmt.Errorf("surveys: unknown rule operator %q", cond.Operator)
}
