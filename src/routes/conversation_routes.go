package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SpitiusK/SurveyBot-sub016/src/controllers"
)

// conversationRoutes exposes the survey-navigation operations per user.
func conversationRoutes(app *fiber.App) {
	conversations := app.Group("/conversations/:userId")

	conversations.Post("/select", controllers.SelectSurvey)
	conversations.Post("/start", controllers.StartConversation)
	conversations.Post("/answer", controllers.AnswerCurrentQuestion)
	conversations.Post("/skip", controllers.SkipCurrentQuestion)
	conversations.Post("/previous", controllers.PreviousQuestion)
	conversations.Post("/complete", controllers.CompleteConversation)
	conversations.Post("/cancel", controllers.CancelConversation)

	conversations.Get("/current", controllers.GetCurrentQuestion)
	conversations.Get("/progress", controllers.GetProgress)
	conversations.Get("/answers/:questionId", controllers.GetAnswer)
}
