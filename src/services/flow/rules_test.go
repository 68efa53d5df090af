package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

func cond(op models.RuleOperator, values ...string) models.RuleCondition {
	return models.RuleCondition{Operator: op, Values: values}
}

func TestEvalEquals(t *testing.T) {
	tests := []struct {
		name   string
		cond   models.RuleCondition
		answer models.AnswerValue
		want   bool
	}{
		{"text match", cond(models.OpEquals, "yes"), models.NewTextAnswer("yes"), true},
		{"text case-insensitive", cond(models.OpEquals, "Yes"), models.NewTextAnswer("YES"), true},
		{"text mismatch", cond(models.OpEquals, "yes"), models.NewTextAnswer("no"), false},
		{"number matches different notation", cond(models.OpEquals, "7.0"), models.NewNumberAnswer(7), true},
		{"rating equals", cond(models.OpEquals, "4"), models.NewRatingAnswer(4, 1, 5), true},
		{"no values", cond(models.OpEquals), models.NewTextAnswer("yes"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvalCondition(tt.cond, tt.answer))
		})
	}
}

func TestEvalContains(t *testing.T) {
	tests := []struct {
		name   string
		cond   models.RuleCondition
		answer models.AnswerValue
		want   bool
	}{
		{"substring", cond(models.OpContains, "good"), models.NewTextAnswer("Pretty good overall"), true},
		{"substring case-insensitive", cond(models.OpContains, "GOOD"), models.NewTextAnswer("pretty good"), true},
		{"substring absent", cond(models.OpContains, "bad"), models.NewTextAnswer("pretty good"), false},
		{"multi-select membership", cond(models.OpContains, "Blue"), models.NewMultipleChoiceAnswer([]string{"Red", "Blue"}), true},
		{"multi-select not member", cond(models.OpContains, "Green"), models.NewMultipleChoiceAnswer([]string{"Red", "Blue"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvalCondition(tt.cond, tt.answer))
		})
	}
}

func TestEvalIn(t *testing.T) {
	c := cond(models.OpIn, "red", "green", "blue")
	assert.True(t, EvalCondition(c, models.NewTextAnswer("Green")))
	assert.False(t, EvalCondition(c, models.NewTextAnswer("yellow")))

	numeric := cond(models.OpIn, "1", "2", "3")
	assert.True(t, EvalCondition(numeric, models.NewRatingAnswer(2, 1, 5)))
}

func TestEvalNumericOperators(t *testing.T) {
	tests := []struct {
		name   string
		cond   models.RuleCondition
		answer models.AnswerValue
		want   bool
	}{
		{"gt true", cond(models.OpGreaterThan, "5"), models.NewNumberAnswer(7), true},
		{"gt false", cond(models.OpGreaterThan, "5"), models.NewNumberAnswer(3), false},
		{"gt boundary", cond(models.OpGreaterThan, "5"), models.NewNumberAnswer(5), false},
		{"gte boundary", cond(models.OpGreaterThanOrEqual, "5"), models.NewNumberAnswer(5), true},
		{"lt true", cond(models.OpLessThan, "0"), models.NewNumberAnswer(-1), true},
		{"lte boundary", cond(models.OpLessThanOrEqual, "5"), models.NewNumberAnswer(5), true},
		{"rating as number", cond(models.OpGreaterThan, "3"), models.NewRatingAnswer(4, 1, 5), true},
		{"numeric text", cond(models.OpGreaterThan, "5"), models.NewTextAnswer("6"), true},
		// Non-numeric answers never satisfy numeric operators.
		{"non-numeric answer skipped", cond(models.OpGreaterThan, "5"), models.NewTextAnswer("seven"), false},
		{"non-numeric condition value", cond(models.OpGreaterThan, "high"), models.NewNumberAnswer(10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvalCondition(tt.cond, tt.answer))
		})
	}
}

func TestEvalExpression(t *testing.T) {
	c := cond(models.OpExpression, `hasNumber && number > 5 && number < 10`)
	assert.True(t, EvalCondition(c, models.NewNumberAnswer(7)))
	assert.False(t, EvalCondition(c, models.NewNumberAnswer(12)))
	assert.False(t, EvalCondition(c, models.NewTextAnswer("seven")))

	selections := cond(models.OpExpression, `"Red" in selections`)
	assert.True(t, EvalCondition(selections, models.NewMultipleChoiceAnswer([]string{"Red", "Blue"})))
	assert.False(t, EvalCondition(selections, models.NewMultipleChoiceAnswer([]string{"Blue"})))

	// Broken expressions are non-matching, never a panic.
	broken := cond(models.OpExpression, `number >`)
	assert.False(t, EvalCondition(broken, models.NewNumberAnswer(1)))

	nonBool := cond(models.OpExpression, `answer`)
	assert.False(t, EvalCondition(nonBool, models.NewTextAnswer("x")))
}

func TestEvalUnknownOperator(t *testing.T) {
	assert.False(t, EvalCondition(cond("matches_regex", ".*"), models.NewTextAnswer("anything")))
}
