package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

// Mock MessageQueue

type mockMessageQueue struct {
	publishFn func(ctx context.Context, task repository.PrewarmTask) error
	published []repository.PrewarmTask
}

func (m *mockMessageQueue) PublishPrewarmTask(ctx context.Context, task repository.PrewarmTask) error {
	if m.publishFn != nil {
		if err := m.publishFn(ctx, task); err != nil {
			return err
		}
	}
	m.published = append(m.published, task)
	return nil
}

func (m *mockMessageQueue) ConsumePrewarmTasks(ctx context.Context, handler func(task repository.PrewarmTask) error) error {
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

func TestPrewarmHandler_Trigger(t *testing.T) {
	activeCreatives := []*model.AdCreative{
		{ID: "spot-a", Enabled: true},
		{ID: "spot-b", Enabled: true},
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		catalog        *mockCatalog
		queue          *mockMessageQueue
		wantStatusCode int
		wantQueued     int
	}{
		{
			name:        "queues one task per active creative",
			requestBody: PrewarmRequest{FPS: 25, Width: 1920, Height: 1080},
			catalog: &mockCatalog{
				listActiveFn: func(ctx context.Context) ([]*model.AdCreative, error) {
					return activeCreatives, nil
				},
			},
			queue:          &mockMessageQueue{},
			wantStatusCode: http.StatusAccepted,
			wantQueued:     2,
		},
		{
			name:        "empty catalog queues nothing",
			requestBody: PrewarmRequest{FPS: 25, Width: 1920, Height: 1080},
			catalog: &mockCatalog{
				listActiveFn: func(ctx context.Context) ([]*model.AdCreative, error) {
					return nil, nil
				},
			},
			queue:          &mockMessageQueue{},
			wantStatusCode: http.StatusAccepted,
			wantQueued:     0,
		},
		{
			name:           "invalid JSON body",
			requestBody:    "invalid json",
			catalog:        &mockCatalog{},
			queue:          &mockMessageQueue{},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "non-positive format",
			requestBody:    PrewarmRequest{FPS: 0, Width: 1920, Height: 1080},
			catalog:        &mockCatalog{},
			queue:          &mockMessageQueue{},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:        "catalog error",
			requestBody: PrewarmRequest{FPS: 25, Width: 1920, Height: 1080},
			catalog: &mockCatalog{
				listActiveFn: func(ctx context.Context) ([]*model.AdCreative, error) {
					return nil, errors.New("connection refused")
				},
			},
			queue:          &mockMessageQueue{},
			wantStatusCode: http.StatusInternalServerError,
		},
		{
			name:        "queue publish failure",
			requestBody: PrewarmRequest{FPS: 25, Width: 1920, Height: 1080},
			catalog: &mockCatalog{
				listActiveFn: func(ctx context.Context) ([]*model.AdCreative, error) {
					return activeCreatives, nil
				},
			},
			queue: &mockMessageQueue{
				publishFn: func(ctx context.Context, task repository.PrewarmTask) error {
					return errors.New("channel closed")
				},
			},
			wantStatusCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPrewarmHandler(tt.catalog, tt.queue)

			var body []byte
			switch v := tt.requestBody.(type) {
			case string:
				body = []byte(v)
			default:
				var err error
				body, err = json.Marshal(v)
				if err != nil {
					t.Fatalf("failed to marshal request body: %v", err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/v1/prewarm", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.Trigger(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}

			if rec.Code == http.StatusAccepted {
				var resp PrewarmResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.TasksQueued != tt.wantQueued {
					t.Errorf("expected %d tasks queued, got %d", tt.wantQueued, resp.TasksQueued)
				}
				if len(tt.queue.published) != tt.wantQueued {
					t.Errorf("expected %d published tasks, got %d", tt.wantQueued, len(tt.queue.published))
				}
				for _, task := range tt.queue.published {
					if task.Format.Key() != "1920x1080@25" {
						t.Errorf("unexpected task format: %q", task.Format.Key())
					}
				}
			}
		})
	}
}
