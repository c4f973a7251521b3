package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

const (
	// DefaultMaxRetries is the default maximum number of retry attempts
	// before a prewarm task is dropped.
	DefaultMaxRetries = 3
)

// PrewarmServiceConfig holds configuration for PrewarmService.
type PrewarmServiceConfig struct {
	// MaxRetries is the maximum number of retry attempts before a task
	// is dropped.
	MaxRetries int
}

// DefaultPrewarmServiceConfig returns the default configuration.
func DefaultPrewarmServiceConfig() PrewarmServiceConfig {
	return PrewarmServiceConfig{
		MaxRetries: DefaultMaxRetries,
	}
}

// PrewarmService defines the worker-side handling of variant pre-warm
// tasks.
type PrewarmService interface {
	// ProcessTask handles one pre-warm task from the message queue.
	// Returns nil on success or permanent failure (max retries exceeded,
	// creative gone). Returns error for transient failures that should
	// trigger a retry.
	ProcessTask(ctx context.Context, task repository.PrewarmTask) error
}

type prewarmService struct {
	catalog  repository.AdCatalog
	variants VariantService

	maxRetries int
}

// NewPrewarmService creates a new PrewarmService instance.
func NewPrewarmService(
	catalog repository.AdCatalog,
	variants VariantService,
	cfg PrewarmServiceConfig,
) PrewarmService {
	return &prewarmService{
		catalog:    catalog,
		variants:   variants,
		maxRetries: cfg.MaxRetries,
	}
}

// ProcessTask builds the requested variant.
func (s *prewarmService) ProcessTask(ctx context.Context, task repository.PrewarmTask) error {
	if task.RetryCount >= s.maxRetries {
		slog.Error("prewarm task dropped after max retries",
			"task_id", task.TaskID,
			"creative_id", task.CreativeID,
			"format", task.Format.Key(),
			"retry_count", task.RetryCount,
		)
		// Ack the message; the variant will be rebuilt on demand instead.
		return nil
	}

	creative, err := s.catalog.GetByID(ctx, task.CreativeID)
	if err != nil {
		if errors.Is(err, repository.ErrCreativeNotFound) {
			slog.Warn("prewarm task for unknown creative dropped",
				"task_id", task.TaskID,
				"creative_id", task.CreativeID,
			)
			return nil
		}
		return fmt.Errorf("get creative: %w", err)
	}

	if _, err := s.variants.EnsureVariant(ctx, creative, task.Format); err != nil {
		return fmt.Errorf("ensure variant: %w", err)
	}

	slog.Info("variant prewarmed",
		"task_id", task.TaskID,
		"creative_id", task.CreativeID,
		"format", task.Format.Key(),
	)
	return nil
}
