package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnswerKind discriminates the closed set of answer variants.
type AnswerKind string

const (
	AnswerText           AnswerKind = "text"
	AnswerSingleChoice   AnswerKind = "single_choice"
	AnswerMultipleChoice AnswerKind = "multiple_choice"
	AnswerRating         AnswerKind = "rating"
	AnswerNumber         AnswerKind = "number"
	AnswerDate           AnswerKind = "date"
	AnswerLocation       AnswerKind = "location"
)

// LocationPayload carries a geographic answer. Accuracy and Timestamp are
// optional, depending on what the transport delivered.
type LocationPayload struct {
	Latitude  float64    `bson:"latitude" json:"latitude" validate:"latitude"`
	Longitude float64    `bson:"longitude" json:"longitude" validate:"longitude"`
	Accuracy  *float64   `bson:"accuracy,omitempty" json:"accuracy,omitempty"`
	Timestamp *time.Time `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
}

// AnswerValue is a tagged variant: Kind selects exactly one payload group.
// Values are immutable after construction; re-answering a question stores a
// new value instead of mutating the old one. Always build answers through
// the New*Answer constructors.
type AnswerValue struct {
	Kind AnswerKind `bson:"kind" json:"kind"`

	Text       string           `bson:"text,omitempty" json:"text,omitempty"`
	Selected   string           `bson:"selected,omitempty" json:"selected,omitempty"`
	Selections []string         `bson:"selections,omitempty" json:"selections,omitempty"`
	Rating     int              `bson:"rating,omitempty" json:"rating,omitempty"`
	RatingMin  int              `bson:"ratingMin,omitempty" json:"ratingMin,omitempty"`
	RatingMax  int              `bson:"ratingMax,omitempty" json:"ratingMax,omitempty"`
	Number     float64          `bson:"number,omitempty" json:"number,omitempty"`
	Date       time.Time        `bson:"date,omitempty" json:"date,omitempty"`
	Location   *LocationPayload `bson:"location,omitempty" json:"location,omitempty"`
}

func NewTextAnswer(text string) AnswerValue {
	return AnswerValue{Kind: AnswerText, Text: text}
}

func NewSingleChoiceAnswer(selected string) AnswerValue {
	return AnswerValue{Kind: AnswerSingleChoice, Selected: selected}
}

// NewMultipleChoiceAnswer keeps selection order and drops duplicates
// case-insensitively.
func NewMultipleChoiceAnswer(selections []string) AnswerValue {
	seen := make(map[string]struct{}, len(selections))
	unique := make([]string, 0, len(selections))
	for _, s := range selections {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, strings.TrimSpace(s))
	}
	return AnswerValue{Kind: AnswerMultipleChoice, Selections: unique}
}

func NewRatingAnswer(value, min, max int) AnswerValue {
	return AnswerValue{Kind: AnswerRating, Rating: value, RatingMin: min, RatingMax: max}
}

func NewNumberAnswer(value float64) AnswerValue {
	return AnswerValue{Kind: AnswerNumber, Number: value}
}

func NewDateAnswer(value time.Time) AnswerValue {
	return AnswerValue{Kind: AnswerDate, Date: value}
}

func NewLocationAnswer(loc LocationPayload) AnswerValue {
	return AnswerValue{Kind: AnswerLocation, Location: &loc}
}

// IsZero reports whether the value carries no answer at all (e.g. a skip).
func (a AnswerValue) IsZero() bool {
	return a.Kind == ""
}

// CanonicalString is the comparison form used by branching rules.
func (a AnswerValue) CanonicalString() string {
	switch a.Kind {
	case AnswerText:
		return a.Text
	case AnswerSingleChoice:
		return a.Selected
	case AnswerMultipleChoice:
		return strings.Join(a.Selections, ",")
	case AnswerRating:
		return strconv.Itoa(a.Rating)
	case AnswerNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case AnswerDate:
		return a.Date.Format("2006-01-02")
	case AnswerLocation:
		if a.Location == nil {
			return ""
		}
		return fmt.Sprintf("%f,%f", a.Location.Latitude, a.Location.Longitude)
	}
	return ""
}

// Display renders the answer for chat output.
func (a AnswerValue) Display() string {
	switch a.Kind {
	case AnswerText:
		return a.Text
	case AnswerSingleChoice:
		return a.Selected
	case AnswerMultipleChoice:
		return strings.Join(a.Selections, ", ")
	case AnswerRating:
		min, max := a.RatingMin, a.RatingMax
		if min == 0 && max == 0 {
			return strconv.Itoa(a.Rating)
		}
		return fmt.Sprintf("%d/%d", a.Rating, max)
	case AnswerNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case AnswerDate:
		return a.Date.Format("2006-01-02")
	case AnswerLocation:
		if a.Location == nil {
			return ""
		}
		return fmt.Sprintf("(%.6f, %.6f)", a.Location.Latitude, a.Location.Longitude)
	}
	return ""
}

// NumericValue returns the answer as a number where that makes sense:
// ratings and numbers directly, text answers when they parse.
func (a AnswerValue) NumericValue() (float64, bool) {
	switch a.Kind {
	case AnswerRating:
		return float64(a.Rating), true
	case AnswerNumber:
		return a.Number, true
	case AnswerText, AnswerSingleChoice:
		v, err := strconv.ParseFloat(strings.TrimSpace(a.CanonicalString()), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// SelectionSet returns the selected option texts for choice answers; a
// single choice yields a one-element set.
func (a AnswerValue) SelectionSet() []string {
	switch a.Kind {
	case AnswerSingleChoice:
		if a.Selected == "" {
			return nil
		}
		return []string{a.Selected}
	case AnswerMultipleChoice:
		return a.Selections
	}
	return nil
}
