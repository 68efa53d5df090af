package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/SpitiusK/SurveyBot-sub016/src/services/answers"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/conversations"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/surveys"
	"github.com/SpitiusK/SurveyBot-sub016/src/utils"
)

var (
	manager       *conversations.Manager
	validator     *answers.Validator
	surveyService *surveys.Service
)

// Init wires the conversation endpoints to their services. Called once
// from main before routes are registered.
func Init(m *conversations.Manager, v *answers.Validator, s *surveys.Service) {
	manager = m
	validator = v
	surveyService = s
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

type startRequest struct {
	SurveyID int64 `json:"surveyId"`
}

type answerRequest struct {
	QuestionID int64  `json:"questionId"`
	Answer     string `json:"answer"`
}

type skipRequest struct {
	QuestionID int64 `json:"questionId"`
}

// SelectSurvey moves the user to survey selection and returns the active
// surveys to offer.
func SelectSurvey(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := requestContext()
	defer cancel()

	if err := manager.BeginSurveySelection(ctx, userID); err != nil {
		return utils.HandleConversationError(c, err)
	}

	page, err := surveyService.ListSurveys(ctx, paginationFromQuery(c))
	if err != nil {
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to list surveys")
	}
	return c.JSON(page)
}

// StartConversation starts a survey run and returns the first question.
func StartConversation(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var req startRequest
	if err := c.BodyParser(&req); err != nil || req.SurveyID <= 0 {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid input")
	}

	ctx, cancel := requestContext()
	defer cancel()

	question, err := manager.StartSurvey(ctx, userID, req.SurveyID)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"question": question,
	})
}

// AnswerCurrentQuestion validates the raw answer, commits it and returns
// either the next question or the completion result.
func AnswerCurrentQuestion(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var req answerRequest
	if err := c.BodyParser(&req); err != nil || req.QuestionID <= 0 {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid input")
	}

	ctx, cancel := requestContext()
	defer cancel()

	question, err := surveyService.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to load question")
	}
	if question == nil {
		return utils.HandleConversationError(c, conversations.ErrUnknownQuestion)
	}

	// Validation must succeed before any flow resolution happens.
	answer, err := validator.Validate(req.Answer, *question)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}

	outcome, err := manager.AnswerQuestion(ctx, userID, req.QuestionID, answer)
	if err != nil && !errors.Is(err, conversations.ErrCycleDetected) {
		return utils.HandleConversationError(c, err)
	}

	if outcome.Completed {
		finalizeResponse(ctx, userID)
		return c.JSON(fiber.Map{
			"completed":     true,
			"cycleDetected": outcome.CycleDetected,
		})
	}
	return c.JSON(fiber.Map{
		"completed": false,
		"question":  outcome.NextQuestion,
	})
}

// SkipCurrentQuestion skips a non-required question.
func SkipCurrentQuestion(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var req skipRequest
	if err := c.BodyParser(&req); err != nil || req.QuestionID <= 0 {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid input")
	}

	ctx, cancel := requestContext()
	defer cancel()

	outcome, err := manager.SkipQuestion(ctx, userID, req.QuestionID)
	if err != nil && !errors.Is(err, conversations.ErrCycleDetected) {
		return utils.HandleConversationError(c, err)
	}

	if outcome.Completed {
		finalizeResponse(ctx, userID)
		return c.JSON(fiber.Map{
			"completed":     true,
			"cycleDetected": outcome.CycleDetected,
		})
	}
	return c.JSON(fiber.Map{
		"completed": false,
		"question":  outcome.NextQuestion,
	})
}

// PreviousQuestion pops the navigation history one step back.
func PreviousQuestion(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := requestContext()
	defer cancel()

	question, err := manager.PreviousQuestion(ctx, userID)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}
	return c.JSON(fiber.Map{"question": question})
}

// CompleteConversation finalizes the run and persists the response.
func CompleteConversation(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := requestContext()
	defer cancel()

	snapshot, err := manager.CompleteSurvey(ctx, userID)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}

	response, err := surveyService.SaveResponse(ctx, snapshot)
	if err != nil {
		log.Println("❌ Failed to persist survey response:", err)
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to save response")
	}
	return c.JSON(fiber.Map{"response": response})
}

// CancelConversation abandons the run; partial answers are kept as an
// incomplete response record.
func CancelConversation(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := requestContext()
	defer cancel()

	snapshot, err := manager.CancelSurvey(ctx, userID)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}

	if len(snapshot.Answered) > 0 {
		if _, err := surveyService.SaveResponse(ctx, snapshot); err != nil {
			log.Println("⚠️ Failed to persist cancelled response:", err)
		}
	}
	return c.JSON(fiber.Map{"cancelled": true})
}

// GetCurrentQuestion returns the question the user is on.
func GetCurrentQuestion(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := requestContext()
	defer cancel()

	questionID, err := manager.GetCurrentQuestionID(ctx, userID)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}
	question, err := surveyService.GetQuestion(ctx, questionID)
	if err != nil {
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to load question")
	}
	if question == nil {
		return utils.HandleConversationError(c, conversations.ErrUnknownQuestion)
	}
	return c.JSON(fiber.Map{"question": question})
}

// GetProgress reports best-effort completion for the active session.
func GetProgress(c *fiber.Ctx) error {
	userID := c.Params("userId")

	ctx, cancel := requestContext()
	defer cancel()

	percent, err := manager.GetProgressPercent(ctx, userID)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}
	allAnswered, err := manager.IsAllAnswered(ctx, userID)
	if err != nil {
		return utils.HandleConversationError(c, err)
	}
	return c.JSON(fiber.Map{
		"percent":     percent,
		"allAnswered": allAnswered,
	})
}

// GetAnswer returns the stored answer for one question of the session.
func GetAnswer(c *fiber.Ctx) error {
	userID := c.Params("userId")
	questionID, err := c.ParamsInt("questionId")
	if err != nil || questionID <= 0 {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid question id")
	}

	ctx, cancel := requestContext()
	defer cancel()

	answer, ok, err := manager.GetAnswerByQuestionID(ctx, userID, int64(questionID))
	if err != nil {
		return utils.HandleConversationError(c, err)
	}
	if !ok {
		return utils.HandleError(c, http.StatusNotFound, "Question not answered")
	}
	return c.JSON(fiber.Map{
		"answer":  answer,
		"display": answer.Display(),
	})
}

// finalizeResponse persists the response after an automatic end-of-survey
// completion. Failure is logged, not surfaced: the conversation outcome
// already happened.
func finalizeResponse(ctx context.Context, userID string) {
	snapshot, err := manager.CompleteSurvey(ctx, userID)
	if err != nil {
		log.Println("⚠️ Failed to finalize completed session:", err)
		return
	}
	if _, err := surveyService.SaveResponse(ctx, snapshot); err != nil {
		log.Println("❌ Failed to persist survey response:", err)
	}
}
