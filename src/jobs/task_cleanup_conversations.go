package jobs

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/SpitiusK/SurveyBot-sub016/src/database"
	"github.com/SpitiusK/SurveyBot-sub016/src/models"
	"github.com/SpitiusK/SurveyBot-sub016/src/services/conversations"
)

// SessionTimeout is set by the worker bootstrap to match the conversation
// manager's inactivity timeout.
var SessionTimeout = conversations.DefaultSessionTimeout

// HandleCleanupConversationsTask reclaims conversation state that has been
// idle past the session timeout. Expiry is always enforced lazily on
// access; this sweep only frees storage for sessions nobody came back to.
func HandleCleanupConversationsTask(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Println("❌ Payload decode error:", err)
		return err
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 100
	}

	client := database.RedisClient
	if client == nil {
		log.Println("⚠️ Redis not available. Skipping conversation cleanup.")
		return nil
	}

	now := time.Now()
	removed := 0
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, conversations.ConversationKeyPrefix+"*", payload.BatchSize).Result()
		if err != nil {
			return err
		}

		for _, key := range keys {
			data, err := client.Get(ctx, key).Bytes()
			if err != nil {
				continue // deleted or expired between scan and get
			}
			var state models.ConversationState
			if err := json.Unmarshal(data, &state); err != nil {
				log.Println("⚠️ Dropping undecodable conversation state:", key)
				client.Del(ctx, key)
				continue
			}
			if state.Expired(now, SessionTimeout) {
				if err := client.Del(ctx, key).Err(); err == nil {
					removed++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		log.Printf("✅ Conversation cleanup removed %d expired session(s)", removed)
	}
	return nil
}
