package surveys

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

func TestCreateSurveyRequestValidation(t *testing.T) {
	base := func(optionText string) *CreateSurveyRequest {
		return &CreateSurveyRequest{
			Title: "Feedback",
			Questions: []QuestionInput{
				{Text: "Pick one", Type: "single_choice", Required: true, Options: []OptionInput{
					{Text: optionText},
					{Text: "Other"},
				}},
			},
		}
	}

	assert.NoError(t, validate.Struct(base("Red")))

	// Comma-separated multi-choice input makes an option text containing a
	// comma unselectable; authoring rejects it up front.
	assert.Error(t, validate.Struct(base("Red, dark")))

	assert.Error(t, validate.Struct(&CreateSurveyRequest{Title: "No questions"}))
	assert.Error(t, validate.Struct(&CreateSurveyRequest{
		Questions: []QuestionInput{{Text: "Q", Type: "text"}},
	}))
}

func TestValidateRuleCondition(t *testing.T) {
	cases := []struct {
		name    string
		cond    models.RuleCondition
		wantErr bool
	}{
		{
			name: "equals accepts any value",
			cond: models.RuleCondition{Operator: models.OpEquals, Values: []string{"Alice"}},
		},
		{
			name: "contains accepts any value",
			cond: models.RuleCondition{Operator: models.OpContains, Values: []string{"needle"}},
		},
		{
			name: "in accepts a value list",
			cond: models.RuleCondition{Operator: models.OpIn, Values: []string{"Red", "Blue"}},
		},
		{
			name: "greater than with numeric value",
			cond: models.RuleCondition{Operator: models.OpGreaterThan, Values: []string{"7"}},
		},
		{
			name:    "greater than with non-numeric value",
			cond:    models.RuleCondition{Operator: models.OpGreaterThan, Values: []string{"seven"}},
			wantErr: true,
		},
		{
			name: "lte tolerates surrounding whitespace",
			cond: models.RuleCondition{Operator: models.OpLessThanOrEqual, Values: []string{" 3.5 "}},
		},
		{
			name: "expression that compiles",
			cond: models.RuleCondition{Operator: models.OpExpression, Values: []string{"number > 5 && number < 10"}},
		},
		{
			name:    "expression that does not compile",
			cond:    models.RuleCondition{Operator: models.OpExpression, Values: []string{"number >"}},
			wantErr: true,
		},
		{
			name:    "expression that is not boolean",
			cond:    models.RuleCondition{Operator: models.OpExpression, Values: []string{"number + 1"}},
			wantErr: true,
		},
		{
			name:    "unknown operator",
			cond:    models.RuleCondition{Operator: "sounds_like", Values: []string{"x"}},
			wantErr: true,
		},
		{
			name:    "empty values",
			cond:    models.RuleCondition{Operator: models.OpEquals, Values: nil},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRuleCondition(tc.cond)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
