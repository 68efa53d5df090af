package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/SpitiusK/SurveyBot-sub016/src/controllers"
	"github.com/SpitiusK/SurveyBot-sub016/src/database"
	"github.com/SpitiusK/SurveyBot-sub016/src/jobs"
	"github.com/SpitiusK/SurveyBot-sub016/src/routes"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/answers"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/conversations"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/surveys"
)

func sessionTimeout() time.Duration {
	minutes, err := strconv.Atoi(os.Getenv("SESSION_TIMEOUT_MINUTES"))
	if err != nil || minutes <= 0 {
		return conversations.DefaultSessionTimeout
	}
	return time.Duration(minutes) * time.Minute
}

func main() {
	err := database.ConnectMongoDB()
	if err != nil {
		log.Fatalf("Error connecting to the database: %v", err)
	}
	database.InitRedis()
	database.InitAsynq()

	timeout := sessionTimeout()

	// Conversation state lives in Redis when available, otherwise in
	// process memory (development mode).
	var store conversations.Store
	if database.RedisClient != nil {
		store = conversations.NewRedisStore(database.RedisClient, timeout)
	} else {
		log.Println("⚠️ Redis not available. Using in-memory conversation store.")
		store = conversations.NewMemoryStore()
	}

	surveyService := surveys.NewService()
	manager := conversations.NewManagerWithTimeout(store, surveyService, timeout)
	controllers.Init(manager, answers.NewValidator(), surveyService)

	go jobs.StartWorker(timeout)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
	}))

	routes.InitRoutes(app)

	appURI := os.Getenv("APP_URI")
	if appURI == "" {
		appURI = "8888"
	}

	log.Println("Server is running on port " + appURI)
	err = app.Listen(fmt.Sprintf(":%s", url.PathEscape(appURI)))
	if err != nil {
		log.Fatal(err)
	}
}
