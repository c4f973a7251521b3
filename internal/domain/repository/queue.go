package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

// PrewarmTask represents an ad-variant pre-warm job message: prepare a
// transcoded variant of one creative for one target format ahead of demand.
type PrewarmTask struct {
	TaskID     uuid.UUID         `json:"task_id"`
	CreativeID string            `json:"creative_id"`
	Format     model.VideoFormat `json:"format"`
	RetryCount int               `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishPrewarmTask sends a variant pre-warm task to the queue.
	// Used by the API server and by playlist processing when a variant
	// could not be prepared inline.
	PublishPrewarmTask(ctx context.Context, task PrewarmTask) error

	// ConsumePrewarmTasks starts consuming pre-warm tasks from the queue.
	// The handler function is called for each received task.
	// Used by the worker service.
	ConsumePrewarmTasks(ctx context.Context, handler func(task PrewarmTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
