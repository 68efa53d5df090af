// Package answers validates raw chat input against a question's type and
// constraints. Validation always runs before flow resolution: the resolver
// never sees an answer that failed here.
package answers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

// ValidationCode identifies why an answer was rejected.
type ValidationCode string

const (
	CodeRequired         ValidationCode = "required"
	CodeTooLong          ValidationCode = "too_long"
	CodeMustSelectOption ValidationCode = "must_select_option"
	CodeInvalidOption    ValidationCode = "invalid_option"
	CodeOutOfRange       ValidationCode = "out_of_range"
	CodeInvalidFormat    ValidationCode = "invalid_format"
)

// ValidationError is the recoverable failure returned for bad input. The
// caller turns the code into user-facing messaging and re-prompts.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("answer validation failed [%s]: %s", e.Code, e.Message)
}

func fail(code ValidationCode, format string, args ...interface{}) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DefaultMaxTextLength bounds free-text answers when no override is set.
const DefaultMaxTextLength = 4096

// dateLayouts are tried in order when parsing date answers.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04",
	"02.01.2006",
}

// Validator turns raw input into a typed AnswerValue. Pure: no I/O, no
// stored state besides configuration.
type Validator struct {
	MaxTextLength int
	validate      *validator.Validate
}

// NewValidator returns a validator with default limits.
func NewValidator() *Validator {
	return &Validator{
		MaxTextLength: DefaultMaxTextLength,
		validate:      validator.New(),
	}
}

// Validate checks raw against the question and returns the typed answer,
// or a *ValidationError describing the rejection.
func (v *Validator) Validate(raw string, question models.Question) (models.AnswerValue, error) {
	raw = strings.TrimSpace(raw)

	switch question.Type {
	case models.QuestionText:
		return v.validateText(raw, question)
	case models.QuestionSingleChoice:
		return v.validateSingleChoice(raw, question)
	case models.QuestionMultipleChoice:
		return v.validateMultipleChoice(raw, question)
	case models.QuestionRating:
		return v.validateRating(raw, question)
	case models.QuestionNumber:
		return v.validateNumber(raw, question)
	case models.QuestionDate:
		return v.validateDate(raw, question)
	case models.QuestionLocation:
		return v.validateLocation(raw, question)
	}
	return models.AnswerValue{}, fail(CodeInvalidFormat, "unsupported question type %q", question.Type)
}

func (v *Validator) validateText(raw string, question models.Question) (models.AnswerValue, error) {
	if raw == "" {
		if question.Required {
			return models.AnswerValue{}, fail(CodeRequired, "an answer is required")
		}
		return models.NewTextAnswer(""), nil
	}
	if len([]rune(raw)) > v.MaxTextLength {
		return models.AnswerValue{}, fail(CodeTooLong, "answer exceeds %d characters", v.MaxTextLength)
	}
	return models.NewTextAnswer(raw), nil
}

func (v *Validator) validateSingleChoice(raw string, question models.Question) (models.AnswerValue, error) {
	if raw == "" {
		return models.AnswerValue{}, fail(CodeMustSelectOption, "select one of the options")
	}
	opt, err := matchOption(raw, question)
	if err != nil {
		return models.AnswerValue{}, err
	}
	return models.NewSingleChoiceAnswer(opt.Text), nil
}

func (v *Validator) validateMultipleChoice(raw string, question models.Question) (models.AnswerValue, error) {
	if raw == "" {
		if question.Required {
			return models.AnswerValue{}, fail(CodeMustSelectOption, "select at least one option")
		}
		return models.NewMultipleChoiceAnswer(nil), nil
	}

	parts := strings.Split(raw, ",")
	selections := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		opt, err := matchOption(p, question)
		if err != nil {
			return models.AnswerValue{}, err
		}
		selections = append(selections, opt.Text)
	}
	if len(selections) == 0 && question.Required {
		return models.AnswerValue{}, fail(CodeMustSelectOption, "select at least one option")
	}
	return models.NewMultipleChoiceAnswer(selections), nil
}

func (v *Validator) validateRating(raw string, question models.Question) (models.AnswerValue, error) {
	// Ratings published with labelled options behave like a single choice.
	if question.HasOptions() {
		if raw == "" {
			return models.AnswerValue{}, fail(CodeMustSelectOption, "select one of the options")
		}
		opt, err := matchOption(raw, question)
		if err != nil {
			return models.AnswerValue{}, err
		}
		return models.NewSingleChoiceAnswer(opt.Text), nil
	}

	if raw == "" {
		return models.AnswerValue{}, fail(CodeRequired, "a rating is required")
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return models.AnswerValue{}, fail(CodeInvalidFormat, "rating must be a whole number")
	}
	min, max := question.RatingBounds()
	if value < min || value > max {
		return models.AnswerValue{}, fail(CodeOutOfRange, "rating must be between %d and %d", min, max)
	}
	return models.NewRatingAnswer(value, min, max), nil
}

func (v *Validator) validateNumber(raw string, question models.Question) (models.AnswerValue, error) {
	if raw == "" {
		return models.AnswerValue{}, fail(CodeRequired, "a number is required")
	}
	// Accept a decimal comma, common in chat input.
	normalized := strings.ReplaceAll(raw, ",", ".")
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return models.AnswerValue{}, fail(CodeInvalidFormat, "%q is not a number", raw)
	}
	return models.NewNumberAnswer(value), nil
}

func (v *Validator) validateDate(raw string, question models.Question) (models.AnswerValue, error) {
	if raw == "" {
		return models.AnswerValue{}, fail(CodeRequired, "a date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.NewDateAnswer(t), nil
		}
	}
	return models.AnswerValue{}, fail(CodeInvalidFormat, "%q is not a recognized date", raw)
}

// validateLocation parses "lat,lon" or "lat,lon,accuracy" and bounds-checks
// the coordinates.
func (v *Validator) validateLocation(raw string, question models.Question) (models.AnswerValue, error) {
	if raw == "" {
		return models.AnswerValue{}, fail(CodeRequired, "a location is required")
	}
	parts := strings.Split(raw, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return models.AnswerValue{}, fail(CodeInvalidFormat, "location must be \"lat,lon\" or \"lat,lon,accuracy\"")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.AnswerValue{}, fail(CodeInvalidFormat, "latitude %q is not a number", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.AnswerValue{}, fail(CodeInvalidFormat, "longitude %q is not a number", parts[1])
	}

	loc := models.LocationPayload{Latitude: lat, Longitude: lon}
	if len(parts) == 3 {
		acc, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || acc < 0 {
			return models.AnswerValue{}, fail(CodeInvalidFormat, "accuracy %q is not a non-negative number", parts[2])
		}
		loc.Accuracy = &acc
	}

	if err := v.validate.Struct(loc); err != nil {
		return models.AnswerValue{}, fail(CodeOutOfRange, "coordinates out of range: %v", err)
	}
	return models.NewLocationAnswer(loc), nil
}

// matchOption resolves raw to exactly one option, case-insensitively. Zero
// or ambiguous matches are rejected.
func matchOption(raw string, question models.Question) (models.Option, error) {
	var found models.Option
	matches := 0
	for _, opt := range question.Options {
		if strings.EqualFold(strings.TrimSpace(opt.Text), raw) {
			found = opt
			matches++
		}
	}
	if matches != 1 {
		return models.Option{}, fail(CodeInvalidOption, "%q is not one of the options", raw)
	}
	return found, nil
}
