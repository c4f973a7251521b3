package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

func TestDefaultPrewarmServiceConfig(t *testing.T) {
	cfg := DefaultPrewarmServiceConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
}

func TestPrewarmService_ProcessTask(t *testing.T) {
	format := model.VideoFormat{FPS: 25, Width: 1920, Height: 1080}
	creative := &model.AdCreative{ID: "spot-a", Enabled: true}

	tests := []struct {
		name       string
		task       repository.PrewarmTask
		getByIDFn  func(ctx context.Context, id string) (*model.AdCreative, error)
		ensureFn   func(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error)
		wantErr    string
		wantEnsure bool
	}{
		{
			name: "builds the requested variant",
			task: repository.PrewarmTask{
				TaskID:     uuid.New(),
				CreativeID: "spot-a",
				Format:     format,
			},
			getByIDFn: func(ctx context.Context, id string) (*model.AdCreative, error) {
				return creative, nil
			},
			wantEnsure: true,
		},
		{
			name: "drops task at max retries",
			task: repository.PrewarmTask{
				TaskID:     uuid.New(),
				CreativeID: "spot-a",
				Format:     format,
				RetryCount: 3,
			},
		},
		{
			name: "drops task for unknown creative",
			task: repository.PrewarmTask{
				TaskID:     uuid.New(),
				CreativeID: "ghost",
				Format:     format,
			},
			getByIDFn: func(ctx context.Context, id string) (*model.AdCreative, error) {
				return nil, repository.ErrCreativeNotFound
			},
		},
		{
			name: "retries on transient catalog error",
			task: repository.PrewarmTask{
				TaskID:     uuid.New(),
				CreativeID: "spot-a",
				Format:     format,
			},
			getByIDFn: func(ctx context.Context, id string) (*model.AdCreative, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: "get creative",
		},
		{
			name: "retries on variant build failure",
			task: repository.PrewarmTask{
				TaskID:     uuid.New(),
				CreativeID: "spot-a",
				Format:     format,
			},
			getByIDFn: func(ctx context.Context, id string) (*model.AdCreative, error) {
				return creative, nil
			},
			ensureFn: func(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error) {
				return nil, errors.New("encoder crashed")
			},
			wantErr:    "ensure variant",
			wantEnsure: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ensureCalls int
			var ensuredFormat model.VideoFormat

			catalog := &mockCatalog{getByIDFn: tt.getByIDFn}
			variants := &mockVariantService{
				ensureVariantFn: func(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error) {
					ensureCalls++
					ensuredFormat = target
					if tt.ensureFn != nil {
						return tt.ensureFn(ctx, creative, target)
					}
					return &model.AdVariant{
						CreativeID: creative.ID,
						FormatKey:  target.Key(),
						Segments:   []string{"segment_000.ts"},
					}, nil
				},
			}

			service := NewPrewarmService(catalog, variants, DefaultPrewarmServiceConfig())

			err := service.ProcessTask(context.Background(), tt.task)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want containing %q", err, tt.wantErr)
				}
			} else if err != nil {
				t.Errorf("ProcessTask() failed: %v", err)
			}

			if tt.wantEnsure && ensureCalls != 1 {
				t.Errorf("EnsureVariant calls = %d, want 1", ensureCalls)
			}
			if !tt.wantEnsure && ensureCalls != 0 {
				t.Errorf("EnsureVariant calls = %d, want 0", ensureCalls)
			}
			if tt.wantEnsure && ensureCalls == 1 && ensuredFormat != format {
				t.Errorf("EnsureVariant format = %+v, want %+v", ensuredFormat, format)
			}
		})
	}
}
