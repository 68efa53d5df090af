package flow

import (
	"sort"
	"strings"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

// Resolver decides which question follows an answer. It holds no state and
// performs no I/O: callers load the question, the survey's branching rules
// and the ordered question list, then Resolve is a pure function over them.
type Resolver struct{}

// Resolve returns the next-step determinant for the given answer.
//
// Precedence:
//  1. the matched option's own next step, when the answer corresponds to
//     exactly one option that carries one (including end_survey);
//  2. the first matching branching rule, in rule id ascending order;
//  3. the question's default next step;
//  4. sequential fallback: the next question by order index within the
//     survey, or end_survey after the last one.
func (Resolver) Resolve(question models.Question, rules []models.BranchingRule, ordered []models.Question, answer models.AnswerValue) models.NextStep {
	if opt, ok := matchedOption(question, answer); ok && opt.Next != nil {
		return *opt.Next
	}

	if next, ok := firstMatchingRule(question.ID, rules, answer); ok {
		return next
	}

	if question.Next != nil {
		return *question.Next
	}

	return sequentialNext(question, ordered)
}

// matchedOption finds the single option the answer corresponds to. A
// multiple-choice answer only corresponds to an option when exactly one
// selection was made. Matching is case-insensitive; an answer that matches
// more than one option matches none.
func matchedOption(question models.Question, answer models.AnswerValue) (models.Option, bool) {
	if !question.HasOptions() {
		return models.Option{}, false
	}
	selections := answer.SelectionSet()
	if len(selections) != 1 {
		return models.Option{}, false
	}
	chosen := selections[0]

	var found models.Option
	matches := 0
	for _, opt := range question.Options {
		if strings.EqualFold(strings.TrimSpace(opt.Text), strings.TrimSpace(chosen)) {
			found = opt
			matches++
		}
	}
	if matches != 1 {
		return models.Option{}, false
	}
	return found, true
}

// firstMatchingRule evaluates the question's branching rules in a stable,
// author-defined priority: rule id ascending. Ties are never arbitrary.
func firstMatchingRule(questionID int64, rules []models.BranchingRule, answer models.AnswerValue) (models.NextStep, bool) {
	if answer.IsZero() {
		return models.NextStep{}, false
	}

	candidates := make([]models.BranchingRule, 0, len(rules))
	for _, r := range rules {
		if r.SourceQuestionID == questionID {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	for _, r := range candidates {
		// Authoring-time validation rejects self-edges; a rule that slipped
		// through must not send the flow back into its own source.
		if r.TargetQuestionID <= 0 || r.TargetQuestionID == r.SourceQuestionID {
			continue
		}
		if EvalCondition(r.Condition, answer) {
			return models.GoToQuestion(r.TargetQuestionID), true
		}
	}
	return models.NextStep{}, false
}

// sequentialNext walks the survey's natural order: the first question with
// a higher order index (ties broken by id), or end_survey after the last.
func sequentialNext(question models.Question, ordered []models.Question) models.NextStep {
	var best *models.Question
	for i := range ordered {
		q := ordered[i]
		if q.SurveyID != question.SurveyID || q.ID == question.ID {
			continue
		}
		if q.OrderIndex < question.OrderIndex {
			continue
		}
		if q.OrderIndex == question.OrderIndex && q.ID <= question.ID {
			continue
		}
		if best == nil || q.OrderIndex < best.OrderIndex ||
			(q.OrderIndex == best.OrderIndex && q.ID < best.ID) {
			best = &ordered[i]
		}
	}
	if best == nil {
		return models.EndOfSurvey()
	}
	return models.GoToQuestion(best.ID)
}
