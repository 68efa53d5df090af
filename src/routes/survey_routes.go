package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SpitiusK/SurveyBot-sub016/src/controllers"
)

// surveyRoutes covers survey authoring and lookup.
func surveyRoutes(app *fiber.App) {
	surveys := app.Group("/surveys")

	surveys.Post("/", controllers.CreateSurvey)
	surveys.Get("/", controllers.ListSurveys)
	surveys.Get("/:id", controllers.GetSurvey)
	surveys.Post("/:id/rules", controllers.AddBranchingRule)
}
