package jobs

import (
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/SpitiusK/SurveyBot-sub016/src/database"
)

// StartWorker runs the asynq server and a scheduler that enqueues the
// conversation janitor every 10 minutes. Blocks; run in a goroutine.
func StartWorker(sessionTimeout time.Duration) {
	if database.RedisURI == "" {
		log.Println("⚠️ Redis not available. Background worker will not start.")
		return
	}
	SessionTimeout = sessionTimeout

	redisOpt := asynq.RedisClientOpt{Addr: database.RedisURI}

	scheduler := asynq.NewScheduler(redisOpt, nil)
	task, err := NewCleanupConversationsTask(100)
	if err != nil {
		log.Fatal("❌ Failed to build cleanup task:", err)
	}
	if _, err := scheduler.Register("@every 10m", task); err != nil {
		log.Fatal("❌ Failed to register cleanup schedule:", err)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			log.Fatal("❌ Asynq scheduler stopped:", err)
		}
	}()

	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 5})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCleanupConversations, HandleCleanupConversationsTask)

	log.Println("✅ Background worker started")
	if err := srv.Run(mux); err != nil {
		log.Fatal("❌ Asynq server stopped:", err)
	}
}
