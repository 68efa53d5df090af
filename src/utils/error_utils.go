// error_utils.go
package utils

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/answers"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/conversations"
)

func HandleError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Status:  status,
		Message: message,
	})
}

// HandleConversationError maps the conversation/validation error taxonomy
// onto HTTP statuses and machine-readable codes, so chat handlers can word
// their own messages.
func HandleConversationError(c *fiber.Ctx, err error) error {
	var validation *answers.ValidationError
	if errors.As(err, &validation) {
		return respond(c, http.StatusUnprocessableEntity, string(validation.Code), validation.Message)
	}

	switch {
	case errors.Is(err, conversations.ErrInvalidTransition):
		return respond(c, http.StatusConflict, "invalid_transition", "operation is not allowed in the current session state")
	case errors.Is(err, conversations.ErrSessionExpired):
		return respond(c, http.StatusGone, "session_expired", "session expired, start the survey again")
	case errors.Is(err, conversations.ErrQuestionRequired):
		return respond(c, http.StatusUnprocessableEntity, "question_required", "this question is required and cannot be skipped")
	case errors.Is(err, conversations.ErrSurveyModified):
		return respond(c, http.StatusConflict, "survey_modified", "the survey changed while you were answering")
	case errors.Is(err, conversations.ErrUnknownSurvey):
		return respond(c, http.StatusNotFound, "unknown_survey", "survey not found")
	case errors.Is(err, conversations.ErrUnknownQuestion):
		return respond(c, http.StatusNotFound, "unknown_question", "question not found")
	}
	return respond(c, http.StatusInternalServerError, "internal", "internal server error")
}

func respond(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Status:  status,
		Code:    code,
		Message: message,
	})
}
