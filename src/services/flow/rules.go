package flow

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/spf13/cast"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

// EvalCondition evaluates a branching-rule condition against an answer.
// Malformed conditions (unknown operator, non-numeric value with a numeric
// operator, broken expression) never match here; authoring-time validation
// is responsible for rejecting them up front.
func EvalCondition(cond models.RuleCondition, answer models.AnswerValue) bool {
	switch cond.Operator {
	case models.OpEquals:
		if len(cond.Values) == 0 {
			return false
		}
		return valueEquals(answer, cond.Values[0])

	case models.OpContains:
		if len(cond.Values) == 0 {
			return false
		}
		want := cond.Values[0]
		if sel := answer.SelectionSet(); answer.Kind == models.AnswerMultipleChoice {
			for _, s := range sel {
				if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(want)) {
					return true
				}
			}
			return false
		}
		return strings.Contains(
			strings.ToLower(answer.CanonicalString()),
			strings.ToLower(strings.TrimSpace(want)),
		)

	case models.OpIn:
		for _, v := range cond.Values {
			if valueEquals(answer, v) {
				return true
			}
		}
		return false

	case models.OpGreaterThan, models.OpLessThan,
		models.OpGreaterThanOrEqual, models.OpLessThanOrEqual:
		return compareNumeric(cond.Operator, answer, cond.Values)

	case models.OpExpression:
		return evalExpression(cond.Values, answer)
	}

	// Unknown operator: defensively non-matching.
	return false
}

// valueEquals compares the answer to a single condition value: numerically
// when both sides parse as numbers (so "7" matches "7.0"), otherwise as a
// case-insensitive exact string match.
func valueEquals(answer models.AnswerValue, value string) bool {
	if num, ok := answer.NumericValue(); ok {
		if want, err := cast.ToFloat64E(strings.TrimSpace(value)); err == nil {
			return num == want
		}
	}
	return strings.EqualFold(
		strings.TrimSpace(answer.CanonicalString()),
		strings.TrimSpace(value),
	)
}

// compareNumeric applies a numeric operator. Non-numeric answers or
// condition values never satisfy it.
func compareNumeric(op models.RuleOperator, answer models.AnswerValue, values []string) bool {
	if len(values) == 0 {
		return false
	}
	got, ok := answer.NumericValue()
	if !ok {
		return false
	}
	want, err := cast.ToFloat64E(strings.TrimSpace(values[0]))
	if err != nil {
		return false
	}
	switch op {
	case models.OpGreaterThan:
		return got > want
	case models.OpLessThan:
		return got < want
	case models.OpGreaterThanOrEqual:
		return got >= want
	case models.OpLessThanOrEqual:
		return got <= want
	}
	return false
}

// evalExpression runs Values[0] as a boolean expr program. The environment
// exposes the answer in the forms rules usually need.
func evalExpression(values []string, answer models.AnswerValue) bool {
	if len(values) == 0 {
		return false
	}
	env := ExpressionEnv(answer)
	program, err := expr.Compile(values[0], expr.Env(env), expr.AsBool())
	if err != nil {
		return false
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	result, ok := out.(bool)
	return ok && result
}

// ExpressionEnv is the variable environment expression rules evaluate in.
// Shared with authoring-time compilation so both sides agree on the shape.
func ExpressionEnv(answer models.AnswerValue) map[string]interface{} {
	num, hasNum := answer.NumericValue()
	return map[string]interface{}{
		"answer":     answer.CanonicalString(),
		"number":     num,
		"hasNumber":  hasNum,
		"selections": answer.SelectionSet(),
	}
}
