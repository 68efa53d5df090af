package controllers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/surveys"
	"github.com/SpitiusK/SurveyBot-sub016/src/utils"
)

func paginationFromQuery(c *fiber.Ctx) models.PaginationParams {
	params := models.DefaultPagination()
	if err := c.QueryParser(&params); err != nil {
		return models.DefaultPagination()
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = 10
	}
	return params
}

// CreateSurvey authors a survey with its question graph.
func CreateSurvey(c *fiber.Ctx) error {
	var req surveys.CreateSurveyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid input")
	}

	ctx, cancel := requestContext()
	defer cancel()

	survey, questions, err := surveyService.CreateSurvey(ctx, &req)
	if err != nil {
		return utils.HandleError(c, http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"survey":    survey,
		"questions": questions,
	})
}

// ListSurveys returns a page of surveys.
func ListSurveys(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	page, err := surveyService.ListSurveys(ctx, paginationFromQuery(c))
	if err != nil {
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to list surveys")
	}
	return c.JSON(page)
}

// GetSurvey returns one survey with its ordered questions and rules.
func GetSurvey(c *fiber.Ctx) error {
	surveyID, err := c.ParamsInt("id")
	if err != nil || surveyID <= 0 {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid survey id")
	}

	ctx, cancel := requestContext()
	defer cancel()

	survey, err := surveyService.GetSurvey(ctx, int64(surveyID))
	if err != nil {
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to load survey")
	}
	if survey == nil {
		return utils.HandleError(c, http.StatusNotFound, "Survey not found")
	}

	questions, err := surveyService.GetSurveyQuestionsOrdered(ctx, survey.ID)
	if err != nil {
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to load questions")
	}
	rules, err := surveyService.GetBranchingRules(ctx, survey.ID)
	if err != nil {
		return utils.HandleError(c, http.StatusInternalServerError, "Failed to load branching rules")
	}
	return c.JSON(fiber.Map{
		"survey":    survey,
		"questions": questions,
		"rules":     rules,
	})
}

// AddBranchingRule adds a condition edge to the survey graph. The survey
// version is bumped, ending in-flight sessions on their next transition.
func AddBranchingRule(c *fiber.Ctx) error {
	surveyID, err := c.ParamsInt("id")
	if err != nil || surveyID <= 0 {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid survey id")
	}

	var req surveys.AddRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.HandleError(c, http.StatusBadRequest, "Invalid input")
	}

	ctx, cancel := requestContext()
	defer cancel()

	rule, err := surveyService.AddBranchingRule(ctx, int64(surveyID), &req)
	if err != nil {
		if errors.Is(err, surveys.ErrDuplicateRule) {
			return utils.HandleError(c, http.StatusConflict, err.Error())
		}
		return utils.HandleError(c, http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(rule)
}
