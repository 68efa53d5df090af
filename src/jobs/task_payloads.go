package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TypeCleanupConversations = "conversation:cleanup"

// CleanupPayload bounds one janitor sweep.
type CleanupPayload struct {
	BatchSize int64 `json:"batch_size"`
}

// NewCleanupConversationsTask builds the periodic janitor task.
func NewCleanupConversationsTask(batchSize int64) (*asynq.Task, error) {
	payload, err := json.Marshal(CleanupPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCleanupConversations, payload), nil
}
